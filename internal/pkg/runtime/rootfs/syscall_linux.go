// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MountAttr mirrors the kernel's mount_attr struct, as consumed by
// mount_setattr(2).
type MountAttr struct {
	AttrSet     uint64
	AttrClr     uint64
	Propagation uint64
	UserNS      uint64
}

// Syscall is the thin capability the Mount Engine depends on for the two
// privileged operations it performs. A mock implementation lets the engine
// be exercised without root or real kernel mount table mutation.
type Syscall interface {
	// Mount wraps mount(2). source and fstype may be empty.
	Mount(source, target, fstype string, flags MountFlags, data string) error
	// MountSetattr wraps mount_setattr(2), applied recursively (AT_RECURSIVE)
	// to the directory open on dirfd/path.
	MountSetattr(dirfd int, path string, attrFlags uint, attr *MountAttr) error
}

// MountError carries the originating errno alongside the operation context,
// so callers can distinguish EINVAL (recoverable, see mount_into_container)
// from other failures.
type MountError struct {
	Op     string
	Source string
	Target string
	Errno  error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("%s %q -> %q: %s", e.Op, e.Source, e.Target, e.Errno)
}

func (e *MountError) Unwrap() error { return e.Errno }

// unixSyscall is the real Syscall backed by golang.org/x/sys/unix.
type unixSyscall struct{}

// NewSyscall returns the production Syscall Adapter.
func NewSyscall() Syscall {
	return unixSyscall{}
}

func (unixSyscall) Mount(source, target, fstype string, flags MountFlags, data string) error {
	if err := unix.Mount(source, target, fstype, uintptr(flags), data); err != nil {
		return &MountError{Op: "mount", Source: source, Target: target, Errno: err}
	}
	return nil
}

func (unixSyscall) MountSetattr(dirfd int, path string, attrFlags uint, attr *MountAttr) error {
	a := &unix.MountAttr{
		Attr_set:    attr.AttrSet,
		Attr_clr:    attr.AttrClr,
		Propagation: attr.Propagation,
		Userns_fd:   attr.UserNS,
	}
	if err := unix.MountSetattr(dirfd, path, attrFlags, a); err != nil {
		return &MountError{Op: "mount_setattr", Source: path, Target: path, Errno: err}
	}
	return nil
}
