// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"fmt"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/opencontainers/cgroups"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// mountCgroupV1 implements the legacy/hybrid cgroup mounting strategy: a
// tmpfs at the destination, followed by one mount per host-visible
// subsystem, namespaced or emulated depending on MountOptions.CgroupNS.
func (m *Mounter) mountCgroupV1(cgroupMount MountRequest, opts MountOptions) error {
	sylog.Debugf("mounting cgroup v1 filesystem")

	tmpfs := MountRequest{
		Source:      "tmpfs",
		Type:        "tmpfs",
		Destination: cgroupMount.Destination,
		Options:     []string{"noexec", "nosuid", "nodev", "mode=755"},
	}
	if err := m.SetupMount(tmpfs, opts); err != nil {
		return fmt.Errorf("failed to mount tmpfs for cgroup: %w", err)
	}

	hostMounts, err := subsystemMountPoints()
	if err != nil {
		return fmt.Errorf("failed to get subsystem mount points: %w", err)
	}
	sylog.Debugf("cgroup mounts: %v", hostMounts)

	processCgroups, err := ownCgroups()
	if err != nil {
		return fmt.Errorf("failed to get process cgroups: %w", err)
	}
	sylog.Debugf("process cgroups: %v", processCgroups)

	cgroupRoot, err := securejoin.SecureJoin(opts.Root, cgroupMount.Destination)
	if err != nil {
		return fmt.Errorf("could not join rootfs path with cgroup mount destination: %w", err)
	}

	for _, hostMount := range hostMounts {
		subsystem := filepath.Base(hostMount)
		if subsystem == "" || subsystem == "." {
			sylog.Warningf("could not get subsystem name from %q", hostMount)
			continue
		}

		named := subsystem == "systemd"
		if opts.CgroupNS {
			if err := m.setupNamespacedSubsystem(cgroupMount, opts, subsystem, named); err != nil {
				return err
			}
		} else if err := m.setupEmulatedSubsystem(cgroupMount, opts, subsystem, named, hostMount, processCgroups); err != nil {
			return err
		}

		if err := SetupComountSymlinks(cgroupRoot, subsystem); err != nil {
			return fmt.Errorf("failed to set up comount symlinks for %q: %w", subsystem, err)
		}
	}

	return nil
}

// setupNamespacedSubsystem mounts a single cgroup v1 subsystem directly,
// relying on the container's own cgroup namespace to scope the view.
func (m *Mounter) setupNamespacedSubsystem(cgroupMount MountRequest, opts MountOptions, subsystem string, named bool) error {
	sylog.Debugf("mounting (namespaced) %q cgroup subsystem", subsystem)

	data := subsystem
	if named {
		data = "name=" + subsystem
	}

	req := MountRequest{
		Source:      "cgroup",
		Type:        "cgroup",
		Destination: filepath.Join(cgroupMount.Destination, subsystem),
	}
	cfg := MountOptionConfig{
		Flags: FlagNOEXEC | FlagNOSUID | FlagNODEV,
		Data:  data,
	}
	if err := m.mountIntoContainer(req, opts.Root, cfg, opts.Label); err != nil {
		return fmt.Errorf("failed to mount %q cgroup subsystem: %w", subsystem, err)
	}
	return nil
}

// setupEmulatedSubsystem bind-mounts the calling process's own cgroup
// subpath for subsystem into the container, used when no cgroup namespace
// is available to isolate the mount.
func (m *Mounter) setupEmulatedSubsystem(cgroupMount MountRequest, opts MountOptions, subsystem string, named bool, hostMount string, processCgroups map[string]string) error {
	sylog.Debugf("mounting (emulated) %q cgroup subsystem", subsystem)

	namedHierarchy := subsystem
	if named {
		namedHierarchy = "name=" + subsystem
	}

	procPath, ok := processCgroups[namedHierarchy]
	if !ok {
		// Comounted controllers share one path, keyed per controller.
		if i := strings.Index(namedHierarchy, ","); i >= 0 {
			procPath, ok = processCgroups[namedHierarchy[:i]]
		}
	}
	if !ok {
		sylog.Warningf("could not mount %q cgroup subsystem", subsystem)
		return nil
	}

	emulated := MountRequest{
		Source:      filepath.Join(hostMount, procPath),
		Destination: filepath.Join(cgroupMount.Destination, subsystem),
		Type:        "bind",
		Options:     []string{"rw", "rbind"},
	}
	if err := m.SetupMount(emulated, opts); err != nil {
		return fmt.Errorf("failed to mount %q cgroup hierarchy: %w", subsystem, err)
	}
	return nil
}

// defaultCgroupRoot is the canonical mount point under which host cgroup v1
// subsystem hierarchies live on virtually every distro.
const defaultCgroupRoot = "/sys/fs/cgroup"

// subsystemMountPoints returns the host's cgroup v1 subsystem mount points,
// restricted to those living under the canonical cgroup root.
func subsystemMountPoints() ([]string, error) {
	mounts, err := cgroups.GetCgroupMounts(false)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, mnt := range mounts {
		if !strings.HasPrefix(mnt.Mountpoint, defaultCgroupRoot) {
			continue
		}
		paths = append(paths, mnt.Mountpoint)
	}
	return paths, nil
}

// ownCgroups returns the calling process's cgroup v1 hierarchy paths, keyed
// by individual controller name: a comounted "cpu,cpuacct" hierarchy yields
// one entry for "cpu" and one for "cpuacct", both with the same path.
func ownCgroups() (map[string]string, error) {
	return cgroups.ParseCgroupFile("/proc/self/cgroup")
}
