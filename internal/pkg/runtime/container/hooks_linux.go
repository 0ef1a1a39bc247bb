// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/pkg/errors"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// runHooks executes hooks in declaration order, piping the container's OCI
// state to each hook's stdin and enforcing a per-hook timeout when one is
// declared. The first failing hook aborts the remaining ones.
func runHooks(hooks []specs.Hook, state *specs.State) error {
	if len(hooks) == 0 {
		return nil
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal container state for hooks")
	}

	for _, h := range hooks {
		if err := runHook(h, stateJSON); err != nil {
			return errors.Wrapf(err, "hook %q failed", h.Path)
		}
	}
	return nil
}

func runHook(h specs.Hook, stateJSON []byte) error {
	ctx := context.Background()
	var cancel context.CancelFunc
	if h.Timeout != nil {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*h.Timeout)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, h.Path, h.Args...)
	cmd.Env = h.Env
	cmd.Stdin = bytes.NewReader(stateJSON)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	sylog.Debugf("running hook %q", h.Path)
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s", stderr.String())
	}
	return nil
}

// createRuntimeState builds the OCI state document passed to createRuntime
// hooks for the in-progress container identified by id.
func createRuntimeState(id string, pid int, bundle string) *specs.State {
	return &specs.State{
		Version: specs.Version,
		ID:      id,
		Status:  specs.StateCreating,
		Pid:     pid,
		Bundle:  bundle,
	}
}
