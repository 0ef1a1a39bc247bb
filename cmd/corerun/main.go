// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Command corerun wires the container creation pipeline together for a
// single create invocation. It is deliberately thin: CLI ergonomics, OCI
// bundle validation, and the init-process body are out of scope for this
// core and are left to a surrounding runtime binary.
package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/google/uuid"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/sylabs/corerun/internal/pkg/runtime/container"
	"github.com/sylabs/corerun/internal/pkg/runtime/rootfs"
	"github.com/sylabs/corerun/internal/pkg/sylog"
	"github.com/sylabs/corerun/internal/pkg/util/rootless"
)

func main() {
	var (
		bundle      string
		containerID string
		pidFile     string
		notifyPath  string
		tenant      bool
		debug       bool
	)

	flag.StringVar(&bundle, "bundle", ".", "path to the OCI bundle")
	flag.StringVar(&containerID, "id", "", "container id")
	flag.StringVar(&pidFile, "pid-file", "", "file to write the init pid to")
	flag.StringVar(&notifyPath, "notify-socket", "", "path for the readiness notify socket")
	flag.BoolVar(&tenant, "tenant", false, "join an existing container instead of creating one")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	if debug {
		sylog.SetLevel(sylog.DebugLevel)
	}

	if containerID == "" {
		sylog.Fatalf("-id is required")
	}

	spec, err := loadSpec(bundle)
	if err != nil {
		sylog.Fatalf("failed to load bundle config: %s", err)
	}

	containerType := container.InitType
	var rec *container.Container
	if tenant {
		containerType = container.TenantType
		rec, err = container.Load(containerID)
		if err != nil {
			sylog.Fatalf("failed to load existing container %q: %s", containerID, err)
		}
	} else {
		rec = &container.Container{ID: containerID, Status: container.StatusCreating}
	}

	rootlessMode, err := rootless.IsRootless()
	if err != nil {
		sylog.Fatalf("failed to determine rootless status: %s", err)
	}

	if notifyPath == "" {
		// No caller-supplied rendezvous path: derive a private one under the
		// container's own state directory so concurrent creates never race
		// on the same socket path.
		stateDir, err := container.StateDir(containerID)
		if err != nil {
			sylog.Fatalf("failed to compute state directory: %s", err)
		}
		if err := os.MkdirAll(stateDir, 0o700); err != nil {
			sylog.Fatalf("failed to create state directory: %s", err)
		}
		notifyPath = stateDir + "/notify-" + uuid.NewString() + ".sock"
	}

	cfg := &container.Config{
		ContainerType: containerType,
		Syscall:       rootfs.NewSyscall(),
		ContainerID:   containerID,
		Spec:          spec,
		Rootfs:        spec.Root.Path,
		PidFile:       pidFile,
		NotifyPath:    notifyPath,
		Rootless:      rootlessMode,
		Container:     rec,
		// Init has no production implementation in this core: the
		// init-process body is an external collaborator (see
		// internal/pkg/runtime/container.InitLauncher). A surrounding
		// runtime binary must supply one before calling Create.
		Init: nil,
	}

	if cfg.Init == nil {
		sylog.Fatalf("no init-process launcher wired in; corerun's core does not ship one (see internal/pkg/runtime/container.InitLauncher)")
	}

	b := container.NewBuilder(cfg)
	pid, err := b.Create()
	if err != nil {
		sylog.Fatalf("failed to create container: %s", err)
	}
	sylog.Infof("container %q created, init pid %d", containerID, pid)
}

func loadSpec(bundle string) (*specs.Spec, error) {
	f, err := os.Open(bundle + "/config.json")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var spec specs.Spec
	if err := json.NewDecoder(f).Decode(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}
