// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package container

import (
	"fmt"
	"net"
	"os"
)

// NotifyListener is the AF_UNIX rendezvous the init process uses to signal
// readiness to the runtime process. It must be created before pivot_root
// and namespace entry, since the socket path lives outside the future
// container root, and must outlive the fork so it can be inherited by the
// init process.
type NotifyListener struct {
	path     string
	listener *net.UnixListener
}

// NewNotifyListener binds a SOCK_STREAM unix listener at path, removing any
// stale socket file left behind by a previous container at the same path.
func NewNotifyListener(path string) (*NotifyListener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale notify socket %q: %w", path, err)
	}

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notify socket address %q: %w", path, err)
	}

	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on notify socket %q: %w", path, err)
	}

	return &NotifyListener{path: path, listener: l}, nil
}

// Path returns the filesystem path of the listening socket.
func (n *NotifyListener) Path() string {
	return n.path
}

// WaitForReady blocks until the init process connects and sends at least
// one byte, then returns. It is the runtime process's half of the
// readiness rendezvous; the init process's half is not specified here.
func (n *NotifyListener) WaitForReady() error {
	conn, err := n.listener.Accept()
	if err != nil {
		return fmt.Errorf("failed to accept on notify socket: %w", err)
	}
	defer conn.Close()

	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil {
		return fmt.Errorf("failed to read readiness signal: %w", err)
	}
	return nil
}

// Close releases the listening socket and removes the socket file.
func (n *NotifyListener) Close() error {
	if err := n.listener.Close(); err != nil {
		return fmt.Errorf("failed to close notify socket: %w", err)
	}
	if err := os.Remove(n.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove notify socket %q: %w", n.path, err)
	}
	return nil
}
