// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials identifies the process on the other end of a unix
// socket as reported by the kernel (SO_PEERCRED).
type PeerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

// ReadPeerCredentials returns the kernel-reported credentials of the
// peer of conn. Only informational: access control is left to the
// socket file's permissions.
func ReadPeerCredentials(conn *net.UnixConn) (PeerCredentials, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return PeerCredentials{}, fmt.Errorf("accessing raw connection: %w", err)
	}

	var credentials *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return PeerCredentials{}, fmt.Errorf("controlling raw connection: %w", err)
	}
	if sockoptErr != nil {
		return PeerCredentials{}, fmt.Errorf("reading SO_PEERCRED: %w", sockoptErr)
	}

	return PeerCredentials{
		PID: credentials.Pid,
		UID: credentials.Uid,
		GID: credentials.Gid,
	}, nil
}
