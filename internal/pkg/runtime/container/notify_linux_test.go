// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestNewNotifyListenerAndRendezvous(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")

	nl, err := NewNotifyListener(sockPath)
	if err != nil {
		t.Fatalf("NewNotifyListener: %v", err)
	}
	defer nl.Close()

	if nl.Path() != sockPath {
		t.Errorf("Path() = %q, want %q", nl.Path(), sockPath)
	}

	done := make(chan error, 1)
	go func() { done <- nl.WaitForReady() }()

	conn, err := net.DialTimeout("unix", sockPath, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("1")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForReady: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for readiness rendezvous")
	}
}

func TestNewNotifyListenerRemovesStaleSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")

	first, err := NewNotifyListener(sockPath)
	if err != nil {
		t.Fatalf("first NewNotifyListener: %v", err)
	}
	// Close the listener without unlinking, leaving a stale socket file
	// behind at sockPath.
	first.listener.SetUnlinkOnClose(false)
	first.listener.Close()

	second, err := NewNotifyListener(sockPath)
	if err != nil {
		t.Fatalf("second NewNotifyListener should reuse the stale path: %v", err)
	}
	defer second.Close()
}
