// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package rootfs implements the mount engine that translates an OCI mount
// specification into kernel mount(2)/mount_setattr(2) calls safely inside a
// container's future root, along with the cgroup v1/v2 mounting strategies
// and the comount-symlink helper they depend on.
package rootfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/moby/sys/mountinfo"
	"github.com/opencontainers/cgroups"
	"github.com/opencontainers/selinux/go-selinux/label"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// MountRequest is one entry of an OCI mount list.
type MountRequest struct {
	Source      string
	Destination string
	Type        string
	Options     []string
}

// FromSpec converts an OCI runtime-spec mount into a MountRequest.
func FromSpec(m specs.Mount) MountRequest {
	return MountRequest{
		Source:      m.Source,
		Destination: m.Destination,
		Type:        m.Type,
		Options:     append([]string(nil), m.Options...),
	}
}

// MountOptions is the ambient per-setup context shared across all mounts for
// a single container creation.
type MountOptions struct {
	// Root is the host path to the container's future rootfs.
	Root string
	// Label is the optional SELinux context label to attach to mount data.
	Label string
	// CgroupNS reports whether the container has its own cgroup namespace.
	CgroupNS bool
}

// Mounter is the Mount Engine: per-mount dispatch, cgroup v1/v2 strategies,
// bind-mount remount enforcement, and private-parent preparation for
// pivot_root.
type Mounter struct {
	syscall Syscall
}

// NewMounter constructs a Mounter backed by the given Syscall Adapter.
func NewMounter(sc Syscall) *Mounter {
	return &Mounter{syscall: sc}
}

// SetupMount dispatches a single mount request: cgroup mounts are routed to
// the v1 or v2 strategy depending on the host's cgroup setup; /dev is forced
// writable for udev-style device population; everything else goes through
// the general mount_into_container path.
func (m *Mounter) SetupMount(req MountRequest, opts MountOptions) error {
	sylog.Debugf("mounting %+v", req)
	cfg := ParseMountOptions(req.Options)

	if req.Type == "cgroup" {
		mode := cgroups.Mode()
		switch mode {
		case cgroups.Legacy, cgroups.Hybrid:
			if err := m.mountCgroupV1(req, opts); err != nil {
				return fmt.Errorf("failed to mount cgroup v1: %w", err)
			}
		case cgroups.Unified:
			if err := m.mountCgroupV2(req, opts, cfg); err != nil {
				return fmt.Errorf("failed to mount cgroup v2: %w", err)
			}
		default:
			return fmt.Errorf("failed to determine cgroup setup")
		}
		return nil
	}

	if req.Destination == "/dev" {
		cfg.Flags &^= FlagRDONLY
	}

	if err := m.mountIntoContainer(req, opts.Root, cfg, opts.Label); err != nil {
		return fmt.Errorf("failed to mount %q: %w", req.Destination, err)
	}
	return nil
}

// mountIntoContainer mounts req.Source at rootfs/req.Destination, creating
// any missing directory/regular-file target and applying a bind-mount
// remount when the requested flags exceed what the initial mount(2) honors.
func (m *Mounter) mountIntoContainer(req MountRequest, rootfs string, cfg MountOptionConfig, mountLabel string) error {
	data := cfg.Data

	if mountLabel != "" && req.Type != "proc" && req.Type != "sysfs" {
		data = label.FormatMountLabel(data, mountLabel)
	}

	dest, err := securejoin.SecureJoin(rootfs, req.Destination)
	if err != nil {
		return fmt.Errorf("failed to join %q with %q: %w", rootfs, req.Destination, err)
	}

	if req.Source == "" {
		return fmt.Errorf("no source in mount spec")
	}

	var src string
	if req.Type == "bind" {
		canon, err := filepath.EvalSymlinks(req.Source)
		if err != nil {
			return fmt.Errorf("failed to canonicalize %q: %w", req.Source, err)
		}
		src = canon

		fi, err := os.Stat(canon)
		isFile := err == nil && !fi.IsDir()

		dir := dest
		if isFile {
			dir = filepath.Dir(dest)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create dir for bind mount: %w", err)
		}
		if isFile {
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("failed to create file for bind mount %q: %w", dest, err)
			}
			f.Close()
		}
	} else {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("failed to create device %q: %w", dest, err)
		}
		src = req.Source
	}

	err = m.syscall.Mount(src, dest, req.Type, cfg.Flags, data)
	if err != nil {
		if !errors.Is(err, unix.EINVAL) {
			return fmt.Errorf("mount of %q failed: %w", req.Destination, err)
		}
		// SELinux contexts can be rejected by filesystems that don't
		// support them; retry once with the pre-label data.
		if err := m.syscall.Mount(src, dest, req.Type, cfg.Flags, cfg.Data); err != nil {
			return fmt.Errorf("failed to mount %q to %q: %w", src, dest, err)
		}
	}

	if req.Type == "bind" && (cfg.Flags & ^MountFlags(nonBindFlagMask)) != 0 {
		if err := m.syscall.Mount(dest, dest, "", cfg.Flags|FlagREMOUNT, ""); err != nil {
			return fmt.Errorf("failed to remount %q: %w", dest, err)
		}
	}

	if !cfg.RecAttr.IsZero() {
		f, err := os.Open(dest)
		if err != nil {
			return fmt.Errorf("failed to open %q for mount_setattr: %w", dest, err)
		}
		defer f.Close()
		attr := &MountAttr{AttrSet: cfg.RecAttr.Set, AttrClr: cfg.RecAttr.Clear}
		if err := m.syscall.MountSetattr(int(f.Fd()), dest, atRecursive, attr); err != nil {
			return fmt.Errorf("failed to set recursive mount attributes on %q: %w", dest, err)
		}
	}

	return nil
}

const atRecursive = 0x8000 // AT_RECURSIVE

// MakeParentMountPrivate ensures the parent mount of rootfs is not `shared`,
// which would otherwise cause pivot_root to fail and bind mounts to
// propagate. It returns the pre-change mount info so a caller may restore
// propagation afterward; it is nil if no change was needed.
func (m *Mounter) MakeParentMountPrivate(rootfs string) (*mountinfo.Info, error) {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read mountinfo: %w", err)
	}

	parent := findParentMount(rootfs, mounts)
	if parent == nil {
		return nil, fmt.Errorf("failed to find parent mount of %q", rootfs)
	}

	if !strings.Contains(parent.Optional, "shared:") {
		return nil, nil
	}

	if err := m.syscall.Mount("", parent.Mountpoint, "", FlagPRIVATE, ""); err != nil {
		return nil, fmt.Errorf("failed to make %q private: %w", parent.Mountpoint, err)
	}
	return parent, nil
}

// RestorePropagation restores the propagation mode recorded by
// MakeParentMountPrivate. corerun never calls this internally (see
// spec.md's open question on propagation restoration); it is provided for
// callers that need to undo the private remount after pivot_root.
func (m *Mounter) RestorePropagation(prior *mountinfo.Info) error {
	if prior == nil {
		return nil
	}
	if !strings.Contains(prior.Optional, "shared:") {
		return nil
	}
	return m.syscall.Mount("", prior.Mountpoint, "", FlagSHARED, "")
}

// findParentMount returns the mount whose mountpoint is the longest prefix
// of path, i.e. the nearest enclosing mount.
func findParentMount(path string, mounts []*mountinfo.Info) *mountinfo.Info {
	var best *mountinfo.Info
	for _, info := range mounts {
		mp := info.Mountpoint
		if mp != path && !strings.HasPrefix(path, strings.TrimSuffix(mp, "/")+"/") && mp != "/" {
			continue
		}
		if best == nil || len(mp) > len(best.Mountpoint) {
			best = info
		}
	}
	return best
}
