// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"path/filepath"
	"testing"

	"github.com/sylabs/corerun/internal/pkg/buildcfg"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	orig := buildcfg.StateRoot
	buildcfg.StateRoot = t.TempDir()
	defer func() { buildcfg.StateRoot = orig }()

	c := &Container{
		ID:      "test-container",
		Status:  StatusCreated,
		Pid:     1234,
		Creator: 0,
	}

	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if c.Root == "" {
		t.Fatalf("expected Root to be populated by Save")
	}

	loaded, err := Load("test-container")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Pid != 1234 || loaded.Status != StatusCreated {
		t.Errorf("loaded record mismatch: %+v", loaded)
	}
}

func TestStateDirIsUnderStateRoot(t *testing.T) {
	orig := buildcfg.StateRoot
	buildcfg.StateRoot = "/run/corerun"
	defer func() { buildcfg.StateRoot = orig }()

	dir, err := StateDir("abc")
	if err != nil {
		t.Fatalf("StateDir: %v", err)
	}
	if dir != filepath.Join("/run/corerun", "abc") {
		t.Errorf("StateDir = %q", dir)
	}
}

func TestLoadMissingContainerFails(t *testing.T) {
	orig := buildcfg.StateRoot
	buildcfg.StateRoot = t.TempDir()
	defer func() { buildcfg.StateRoot = orig }()

	if _, err := Load("does-not-exist"); err == nil {
		t.Errorf("expected an error loading a never-saved container")
	}
}
