// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/sylabs/corerun/internal/pkg/runtime/rootfs"
)

// InitArgs is the bundle handed to the init-process collaborator: enough
// for it to pivot_root, apply seccomp, map uids/gids, and exec the user
// command, without the Builder needing to know how any of that happens.
type InitArgs struct {
	ContainerType Type
	Syscall       rootfs.Syscall
	Spec          *specs.Spec
	Rootfs        string
	ConsoleSocket int
	NotifySocket  *NotifyListener
	PreserveFds   int
	Container     *Container
	CgroupManager CgroupManager
	Detached      bool
}

// InitLauncher is the out-of-scope external collaborator that realizes the
// init-process body (pivot_root, seccomp, user-namespace uid/gid mapping,
// exec of the user command). The only observable output is the returned
// pid and whether an Intel RDT resctrl directory was created; how the
// process comes to exist — fork+exec of a re-exec'd binary, clone into a
// namespace-adjusted address space, or any equivalent arrangement — is not
// specified here.
type InitLauncher interface {
	Start(args InitArgs) (pid int, needsRdtCleanup bool, err error)
}
