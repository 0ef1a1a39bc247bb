// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package container implements the container creation pipeline: the
// create/cleanup state machine, the notify-socket rendezvous, and the
// persisted container record.
package container

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/sylabs/corerun/internal/pkg/runtime/rootfs"
)

// Type distinguishes the first process of a freshly created container from
// an additional process joining an already-running one.
type Type int

const (
	// InitType is the first process of a freshly created container.
	InitType Type = iota
	// TenantType is an additional process joining an existing container
	// (OCI exec).
	TenantType
)

func (t Type) String() string {
	if t == TenantType {
		return "tenant"
	}
	return "init"
}

// Status is the lifecycle state of a container record.
type Status string

const (
	StatusCreating Status = "creating"
	StatusCreated  Status = "created"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusPaused   Status = "paused"
)

// Container is the persisted record of a single container.
//
// Invariant: once Status reaches StatusCreated, Pid is non-zero and Root
// exists on disk.
type Container struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Pid    int    `json:"pid"`
	// Creator is the effective uid of the runtime process at creation.
	Creator int `json:"creator"`
	// CleanUpIntelRdtSubdirectory is set when the init process created a
	// resctrl group that cleanup must later remove.
	CleanUpIntelRdtSubdirectory bool `json:"clean_up_intel_rdt_subdirectory"`
	// Root is the on-disk state directory for this container.
	Root string `json:"root"`
	// Bundle is the host path of the OCI bundle the container was created
	// from.
	Bundle string `json:"bundle,omitempty"`
}

// Config is the Builder's input bundle: everything needed to create or
// clean up a single container.
type Config struct {
	ContainerType Type
	Syscall       rootfs.Syscall
	UseSystemd    bool
	ContainerID   string
	Spec          *specs.Spec
	Rootfs        string
	PidFile       string
	ConsoleSocket int
	Rootless      bool
	NotifyPath    string
	Container     *Container
	PreserveFds   int
	Detached      bool
	Init          InitLauncher
}
