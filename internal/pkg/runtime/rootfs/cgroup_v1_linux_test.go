// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetupNamespacedSubsystem(t *testing.T) {
	root := t.TempDir()
	sc := newRecordingSyscall()
	m := NewMounter(sc)

	cgroupMount := MountRequest{Destination: "/sys/fs/cgroup"}
	opts := MountOptions{Root: root}

	if err := m.setupNamespacedSubsystem(cgroupMount, opts, "memory", false); err != nil {
		t.Fatalf("setupNamespacedSubsystem: %v", err)
	}
	if len(sc.calls) != 1 {
		t.Fatalf("expected 1 mount call, got %d", len(sc.calls))
	}
	if sc.calls[0].Data != "memory" {
		t.Errorf("data = %q, want %q", sc.calls[0].Data, "memory")
	}
	if sc.calls[0].Target != filepath.Join(root, "sys", "fs", "cgroup", "memory") {
		t.Errorf("unexpected target %q", sc.calls[0].Target)
	}
}

func TestSetupNamespacedSubsystemNamed(t *testing.T) {
	root := t.TempDir()
	sc := newRecordingSyscall()
	m := NewMounter(sc)

	cgroupMount := MountRequest{Destination: "/sys/fs/cgroup"}
	if err := m.setupNamespacedSubsystem(cgroupMount, MountOptions{Root: root}, "systemd", true); err != nil {
		t.Fatalf("setupNamespacedSubsystem: %v", err)
	}
	if sc.calls[0].Data != "name=systemd" {
		t.Errorf("data = %q, want name=systemd", sc.calls[0].Data)
	}
}

func TestSetupEmulatedSubsystem(t *testing.T) {
	root := t.TempDir()
	sc := newRecordingSyscall()
	m := NewMounter(sc)

	// setupEmulatedSubsystem bind-mounts hostMount/procCgroups[subsystem], so
	// that joined path must exist on the real filesystem for EvalSymlinks to
	// succeed; stand in for the host's cgroup v1 hierarchy with a temp dir.
	hostMount := t.TempDir()
	if err := os.MkdirAll(filepath.Join(hostMount, "user.slice"), 0o755); err != nil {
		t.Fatal(err)
	}

	cgroupMount := MountRequest{Destination: "/sys/fs/cgroup"}
	opts := MountOptions{Root: root}
	procCgroups := map[string]string{"memory": "/user.slice"}

	if err := m.setupEmulatedSubsystem(cgroupMount, opts, "memory", false, hostMount, procCgroups); err != nil {
		t.Fatalf("setupEmulatedSubsystem: %v", err)
	}
	if len(sc.calls) != 1 {
		t.Fatalf("expected 1 mount call, got %d", len(sc.calls))
	}
	want := filepath.Join(hostMount, "user.slice")
	if sc.calls[0].Source != want {
		t.Errorf("source = %q, want %q", sc.calls[0].Source, want)
	}
}

func TestSetupEmulatedSubsystemMissingEntrySkips(t *testing.T) {
	root := t.TempDir()
	sc := newRecordingSyscall()
	m := NewMounter(sc)

	cgroupMount := MountRequest{Destination: "/sys/fs/cgroup"}
	opts := MountOptions{Root: root}

	if err := m.setupEmulatedSubsystem(cgroupMount, opts, "devices", false, "/sys/fs/cgroup/devices", map[string]string{}); err != nil {
		t.Fatalf("expected a missing cgroup entry to be non-fatal, got: %v", err)
	}
	if len(sc.calls) != 0 {
		t.Errorf("expected no mount attempted, got %d calls", len(sc.calls))
	}
}
