// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/sylabs/corerun/internal/pkg/buildcfg"
)

const stateFile = "state.json"

// StateDir returns the on-disk directory holding a container's persisted
// record, joined securely onto the runtime's state root.
func StateDir(containerID string) (string, error) {
	return securejoin.SecureJoin(buildcfg.StateRoot, containerID)
}

// Save writes c to its state directory, creating the directory if
// necessary. The write is atomic: the record is written to a temp file in
// the same directory and renamed into place, so a reader never observes a
// partially written record.
func (c *Container) Save() error {
	if c.Root == "" {
		root, err := StateDir(c.ID)
		if err != nil {
			return fmt.Errorf("failed to compute state dir for %q: %w", c.ID, err)
		}
		c.Root = root
	}

	if err := os.MkdirAll(c.Root, 0o700); err != nil {
		return fmt.Errorf("failed to create state dir %q: %w", c.Root, err)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal container state: %w", err)
	}

	dst := filepath.Join(c.Root, stateFile)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to commit state file: %w", err)
	}
	return nil
}

// Load reads the persisted record for containerID.
func Load(containerID string) (*Container, error) {
	root, err := StateDir(containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute state dir for %q: %w", containerID, err)
	}

	data, err := os.ReadFile(filepath.Join(root, stateFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read state file for %q: %w", containerID, err)
	}

	var c Container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state file for %q: %w", containerID, err)
	}
	return &c, nil
}
