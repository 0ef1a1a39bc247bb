// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// resctrlMountpoint is the canonical Intel RDT resctrl pseudofilesystem
// mount point.
const resctrlMountpoint = "/sys/fs/resctrl"

// Builder is the container creation pipeline's top-level create/cleanup
// state machine.
type Builder struct {
	cfg *Config
}

// NewBuilder constructs a Builder from the given input bundle.
func NewBuilder(cfg *Config) *Builder {
	return &Builder{cfg: cfg}
}

// Create runs the container and, on failure of an init container, rolls
// back whatever partial state was created. The outer error from
// runContainer is always returned to the caller; a cleanup failure is
// attached as additional context rather than replacing it. Tenant-container
// failures are never cleaned up, since a tenant joins an already-running
// container whose state must survive the tenant's own failure.
func (b *Builder) Create() (int, error) {
	pid, err := b.runContainer()
	if err == nil {
		return pid, nil
	}

	outer := fmt.Errorf("failed to create container: %w", err)
	if b.cfg.ContainerType != InitType {
		return 0, outer
	}

	if cleanupErr := b.cleanupContainer(); cleanupErr != nil {
		return 0, fmt.Errorf("%w (cleanup also failed: %s)", outer, cleanupErr)
	}
	return 0, outer
}

func (b *Builder) runContainer() (int, error) {
	cfg := b.cfg

	linux := cfg.Spec.Linux
	if linux == nil {
		return 0, fmt.Errorf("no linux section in spec")
	}
	if cfg.Spec.Process == nil {
		return 0, fmt.Errorf("no process section in spec")
	}

	cgroupsPath := rootlessCgroupPath(linux.CgroupsPath, cfg.ContainerID, cfg.Rootless)
	cgroupMgr, err := newCgroupManager(cgroupsPath, cfg.ContainerID, cfg.UseSystemd, cfg.Rootless)
	if err != nil {
		return 0, fmt.Errorf("failed to construct cgroup manager: %w", err)
	}

	if cfg.ContainerType == InitType && cfg.Spec.Hooks != nil {
		var bundle string
		var pid int
		if cfg.Container != nil {
			bundle = cfg.Container.Bundle
			pid = cfg.Container.Pid
		}
		state := createRuntimeState(cfg.ContainerID, pid, bundle)
		if err := runHooks(cfg.Spec.Hooks.CreateRuntime, state); err != nil {
			return 0, fmt.Errorf("createRuntime hook failed: %w", err)
		}
	}

	// The notify socket must be bound before pivot_root / namespace entry:
	// its path is outside the future container root and would otherwise
	// become unreachable.
	notifySocket, err := NewNotifyListener(cfg.NotifyPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create notify socket: %w", err)
	}

	process := cfg.Spec.Process
	if process.OOMScoreAdj != nil {
		sylog.Debugf("setting oom_score_adj to %d", *process.OOMScoreAdj)
		if err := os.WriteFile("/proc/self/oom_score_adj", []byte(strconv.Itoa(*process.OOMScoreAdj)), 0o644); err != nil {
			return 0, fmt.Errorf("failed to set oom_score_adj: %w", err)
		}
	}

	// Non-dumpable avoids races where a process in a namespace we are
	// joining could access host resources via /proc/self.
	if len(linux.Namespaces) > 0 {
		if err := unix.Prctl(unix.PR_SET_DUMPABLE, 0, 0, 0, 0); err != nil {
			return 0, fmt.Errorf("failed to set non-dumpable: %w", err)
		}
	}

	args := InitArgs{
		ContainerType: cfg.ContainerType,
		Syscall:       cfg.Syscall,
		Spec:          cfg.Spec,
		Rootfs:        cfg.Rootfs,
		ConsoleSocket: cfg.ConsoleSocket,
		NotifySocket:  notifySocket,
		PreserveFds:   cfg.PreserveFds,
		Container:     cfg.Container,
		CgroupManager: cgroupMgr,
		Detached:      cfg.Detached,
	}

	pid, needsRdtCleanup, err := cfg.Init.Start(args)
	if err != nil {
		return 0, fmt.Errorf("failed to start init process: %w", err)
	}

	if cfg.PidFile != "" {
		if err := os.WriteFile(cfg.PidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
			return 0, fmt.Errorf("failed to write pid file: %w", err)
		}
	}

	if cfg.Container != nil {
		c := cfg.Container
		c.Status = StatusCreated
		c.Creator = os.Geteuid()
		c.Pid = pid
		c.CleanUpIntelRdtSubdirectory = needsRdtCleanup
		if err := c.Save(); err != nil {
			return 0, fmt.Errorf("failed to save container state: %w", err)
		}
	}

	return pid, nil
}

// cleanupContainer is best-effort: every step runs even if an earlier one
// fails, and all failures are aggregated into a single error so that one
// unreclaimed kernel resource does not mask another. Order matters: cgroup
// removal, then resctrl deletion, then state-directory removal, so kernel
// objects are released before their on-disk handles.
func (b *Builder) cleanupContainer() error {
	cfg := b.cfg
	var errs []string

	linux := cfg.Spec.Linux
	if linux != nil {
		cgroupsPath := rootlessCgroupPath(linux.CgroupsPath, cfg.ContainerID, cfg.Rootless)
		cgroupMgr, err := newCgroupManager(cgroupsPath, cfg.ContainerID, cfg.UseSystemd, cfg.Rootless)
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to rebuild cgroup manager: %s", err))
		} else if err := cgroupMgr.Remove(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to remove cgroup: %s", err))
		}
	}

	if cfg.Container != nil {
		if cfg.Container.CleanUpIntelRdtSubdirectory {
			if err := deleteResctrlSubdirectory(cfg.ContainerID); err != nil {
				errs = append(errs, fmt.Sprintf("failed to delete resctrl subdirectory %q: %s", cfg.ContainerID, err))
			}
		}

		if cfg.Container.Root != "" {
			if _, err := os.Stat(cfg.Container.Root); err == nil {
				if err := os.RemoveAll(cfg.Container.Root); err != nil {
					errs = append(errs, fmt.Sprintf("could not delete %q: %s", cfg.Container.Root, err))
				}
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("failed to cleanup container: %s", strings.Join(errs, ";"))
}

// deleteResctrlSubdirectory removes the per-container Intel RDT resctrl
// group, named after the container id under the resctrl mount point.
// Creating it is the init-process collaborator's job; only the deletion is
// this package's responsibility.
func deleteResctrlSubdirectory(containerID string) error {
	path := filepath.Join(resctrlMountpoint, containerID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
