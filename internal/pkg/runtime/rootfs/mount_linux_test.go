// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupMountDevptsWithLabel(t *testing.T) {
	root := t.TempDir()
	sc := newRecordingSyscall()
	m := NewMounter(sc)

	req := MountRequest{
		Source:      "devpts",
		Destination: "/dev/pts",
		Type:        "devpts",
		Options:     []string{"newinstance", "ptmxmode=0666", "mode=0620", "gid=5"},
	}
	opts := MountOptions{Root: root, Label: "system_u:object_r:container_file_t:s0:c1,c2"}

	if err := m.SetupMount(req, opts); err != nil {
		t.Fatalf("SetupMount: %v", err)
	}

	if len(sc.calls) != 1 {
		t.Fatalf("expected 1 mount call, got %d", len(sc.calls))
	}
	call := sc.calls[0]
	if call.Fstype != "devpts" {
		t.Errorf("fstype = %q, want devpts", call.Fstype)
	}
	if call.Target != filepath.Join(root, "dev", "pts") {
		t.Errorf("target = %q", call.Target)
	}
	if !strings.Contains(call.Data, "context=") {
		t.Errorf("expected data to carry selinux context, got %q", call.Data)
	}

	if _, err := os.Stat(filepath.Join(root, "dev", "pts")); err != nil {
		t.Errorf("expected destination directory created: %v", err)
	}
}

func TestSetupMountBindRegularFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "hostfile")
	if err := os.WriteFile(src, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	sc := newRecordingSyscall()
	m := NewMounter(sc)

	req := MountRequest{
		Source:      src,
		Destination: "/etc/hosts",
		Type:        "bind",
		Options:     []string{"bind", "ro"},
	}
	opts := MountOptions{Root: root}

	if err := m.SetupMount(req, opts); err != nil {
		t.Fatalf("SetupMount: %v", err)
	}

	dest := filepath.Join(root, "etc", "hosts")
	fi, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("expected bind target created: %v", err)
	}
	if fi.IsDir() {
		t.Errorf("expected regular-file bind target, got directory")
	}

	if len(sc.calls) != 2 {
		t.Fatalf("expected initial bind + remount, got %d calls", len(sc.calls))
	}
	if sc.calls[1].Flags&FlagREMOUNT == 0 {
		t.Errorf("expected second call to be a remount")
	}
}

func TestSetupMountDevForcesWritable(t *testing.T) {
	root := t.TempDir()
	sc := newRecordingSyscall()
	m := NewMounter(sc)

	req := MountRequest{
		Source:      "tmpfs",
		Destination: "/dev",
		Type:        "tmpfs",
		Options:     []string{"ro", "mode=755"},
	}
	if err := m.SetupMount(req, MountOptions{Root: root}); err != nil {
		t.Fatalf("SetupMount: %v", err)
	}
	if sc.calls[0].Flags&FlagRDONLY != 0 {
		t.Errorf("expected /dev mount to drop the readonly flag")
	}
}

func TestMakeParentMountPrivateUnresolvedParent(t *testing.T) {
	// Without a real mount table to inspect, verify that a rootfs whose
	// parent cannot be resolved at all surfaces an error rather than
	// silently succeeding. findParentMount treats "/" as enclosing every
	// path, so on a host whose mount table lists "/" the path resolves and
	// the test is skipped.
	sc := newRecordingSyscall()
	m := NewMounter(sc)
	if _, err := m.MakeParentMountPrivate("/this/path/does/not/exist/in/mountinfo"); err == nil {
		t.Skip("environment mount table resolves this path through an enclosing mount")
	}
}
