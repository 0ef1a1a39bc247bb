// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sylabs/corerun/internal/pkg/sylog"
)

// SetupComountSymlinks recreates the comounted-controller symlinks the host
// kernel exposes for a cgroup v1 subsystem whose name is a comma-joined
// alias list (e.g. "cpu,cpuacct" also appears at "cpu" and "cpuacct"). Only
// the subsystem's own directory was actually mounted; this fills in the
// alias names as symlinks pointing at it, matching what /sys/fs/cgroup looks
// like on the host.
func SetupComountSymlinks(cgroupRoot, subsystem string) error {
	if !strings.Contains(subsystem, ",") {
		return nil
	}

	for _, alias := range strings.Split(subsystem, ",") {
		if alias == "" || alias == subsystem {
			continue
		}
		link := filepath.Join(cgroupRoot, alias)
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		sylog.Debugf("linking cgroup subsystem alias %q -> %q", alias, subsystem)
		if err := os.Symlink(subsystem, link); err != nil && !os.IsExist(err) {
			return fmt.Errorf("failed to symlink %q to %q: %w", link, subsystem, err)
		}
	}
	return nil
}
