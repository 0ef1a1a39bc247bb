// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"fmt"
	"path/filepath"

	"github.com/opencontainers/cgroups"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// mountCgroupV2 implements the unified cgroup mounting strategy: mount
// cgroup2 directly at the destination, falling back to bind-mounting the
// host's own unified cgroup path when the direct mount is rejected (e.g.
// inside a container that does not own its own cgroup namespace).
func (m *Mounter) mountCgroupV2(cgroupMount MountRequest, opts MountOptions, cfg MountOptionConfig) error {
	sylog.Debugf("mounting cgroup v2 filesystem")

	direct := MountRequest{
		Type:        "cgroup2",
		Source:      "cgroup",
		Destination: cgroupMount.Destination,
	}

	if err := m.mountIntoContainer(direct, opts.Root, cfg, opts.Label); err == nil {
		return nil
	}

	hostMount, err := unifiedMountPoint()
	if err != nil {
		return fmt.Errorf("failed to get unified mount point: %w", err)
	}

	processCgroup, err := ownUnifiedCgroup()
	if err != nil {
		return fmt.Errorf("failed to find unified process cgroup: %w", err)
	}

	bindCfg := cfg
	bindCfg.Flags |= FlagBIND

	bindMount := MountRequest{
		Type:        "bind",
		Source:      filepath.Join(hostMount, processCgroup),
		Destination: cgroupMount.Destination,
	}
	if err := m.mountIntoContainer(bindMount, opts.Root, bindCfg, opts.Label); err != nil {
		return fmt.Errorf("failed to bind mount cgroup hierarchy: %w", err)
	}
	return nil
}

// unifiedMountPoint is the well-known single cgroup2 mount point.
func unifiedMountPoint() (string, error) {
	return cgroups.UnifiedMountpoint, nil
}

// ownUnifiedCgroup returns the calling process's path within the unified
// (hierarchy == 0) cgroup.
func ownUnifiedCgroup() (string, error) {
	cg, err := cgroups.ParseCgroupFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	// In the unified hierarchy /proc/self/cgroup has a single "" controller
	// key, per the kernel's cgroup v2 documentation.
	if path, ok := cg[""]; ok {
		return path, nil
	}
	return "", fmt.Errorf("no unified cgroup entry found")
}
