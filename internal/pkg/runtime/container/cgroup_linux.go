// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/opencontainers/cgroups"
	cgmanager "github.com/opencontainers/cgroups/manager"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// CgroupManager is the narrow contract the Builder depends on: a cgroup
// hierarchy constructed for one container, removable on cleanup.
type CgroupManager interface {
	Remove() error
}

// cgroupManagerAdapter adapts the real opencontainers/cgroups manager to
// the CgroupManager contract.
type cgroupManagerAdapter struct {
	mgr cgroups.Manager
}

func (a *cgroupManagerAdapter) Remove() error {
	return a.mgr.Destroy()
}

// newCgroupManager constructs a Cgroup Manager for containerID, rooted at
// cgroupsPath. useSystemd selects the systemd cgroup driver; it is forced on
// whenever rootless is true, since rootless containers cannot create
// arbitrary cgroup directories directly and must delegate to systemd's
// user session manager.
func newCgroupManager(cgroupsPath, containerID string, useSystemd, rootless bool) (CgroupManager, error) {
	systemd := useSystemd || rootless

	if systemd {
		connect := dbus.NewSystemConnectionContext
		if rootless {
			connect = dbus.NewUserConnectionContext
		}
		if conn, err := connect(context.Background()); err != nil {
			sylog.Warningf("systemd cgroup driver requested but dbus is unreachable: %s", err)
		} else {
			conn.Close()
		}
	}

	cg := &cgroups.Cgroup{
		Name:      containerID,
		Path:      cgroupsPath,
		Systemd:   systemd,
		Rootless:  rootless,
		Resources: &cgroups.Resources{},
	}

	mgr, err := cgmanager.New(cg)
	if err != nil {
		return nil, fmt.Errorf("failed to construct cgroup manager: %w", err)
	}
	return &cgroupManagerAdapter{mgr: mgr}, nil
}

// rootlessCgroupPath places a rootless container with no declared OCI cgroups
// path into the user slice, matching the systemd user-session layout. A
// declared path, or any path when not rootless, is returned unchanged.
func rootlessCgroupPath(declared, containerID string, rootless bool) string {
	if !rootless || declared != "" {
		return declared
	}
	return filepath.Join("user.slice", containerID+".scope")
}
