// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package rootless identifies the uid/gid a rootless invocation of corerun
// is really acting as, accounting for the rootless-uid/gid environment
// variables a re-exec'd process may have inherited from a user-namespace
// wrapper.
package rootless

import (
	"os"
	"os/user"
	"strconv"

	"github.com/moby/sys/userns"
)

const (
	// NSEnv marks a process as already running inside a namespace set up
	// by a rootless wrapper.
	NSEnv = "_CORERUN_NAMESPACE"
	// UIDEnv/GIDEnv carry the uid/gid a rootless wrapper is acting as,
	// since the process's own euid/egid inside a user namespace is
	// typically 0.
	UIDEnv = "_CORERUN_ROOTLESS_UID"
	GIDEnv = "_CORERUN_ROOTLESS_GID"
)

// Getuid retrieves the uid stored in UIDEnv, or the current euid if unset.
func Getuid() (int, error) {
	if u := os.Getenv(UIDEnv); u != "" {
		return strconv.Atoi(u)
	}
	return os.Geteuid(), nil
}

// Getgid retrieves the gid stored in GIDEnv, or the current egid if unset.
func Getgid() (int, error) {
	if g := os.Getenv(GIDEnv); g != "" {
		return strconv.Atoi(g)
	}
	return os.Getegid(), nil
}

// GetUser retrieves the User struct for the uid stored in UIDEnv, or the
// current euid if unset.
func GetUser() (*user.User, error) {
	if u := os.Getenv(UIDEnv); u != "" {
		return user.LookupId(u)
	}
	return user.Current()
}

// InNS reports whether the current process is already inside a namespace
// set up by a rootless wrapper.
func InNS() bool {
	_, set := os.LookupEnv(NSEnv)
	return set
}

// IsRootless reports whether corerun is acting on behalf of a non-root
// user, whether by actual euid, by the rootless-uid environment the caller
// set before re-exec'ing into a user namespace, or because the process is
// already confined to one: a process inside its own user namespace maps to
// euid 0 there even though it is rootless on the host, so Getuid alone
// would misreport it.
func IsRootless() (bool, error) {
	uid, err := Getuid()
	if err != nil {
		return false, err
	}
	return uid != 0 || userns.RunningInUserNS(), nil
}
