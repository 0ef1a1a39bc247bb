// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package buildcfg holds the handful of compiled-in defaults corerun needs:
// the root directory under which per-container state is persisted.
package buildcfg

// StateRoot is the default root directory for persisted container state.
// It is a var, not a const, so tests can redirect it into a scratch
// directory rather than touching /run.
var StateRoot = "/run/corerun"
