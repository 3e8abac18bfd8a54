// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipctest

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/i3ipc/lib/testutil"
)

// lateListener hands out one connection only after Close has been
// called, the way a real Accept can complete concurrently with Close.
type lateListener struct {
	conn      net.Conn
	closing   chan struct{}
	closeOnce sync.Once
	handedOut bool
}

func (l *lateListener) Accept() (net.Conn, error) {
	<-l.closing
	if l.handedOut {
		return nil, net.ErrClosed
	}
	l.handedOut = true
	return l.conn, nil
}

func (l *lateListener) Close() error {
	l.closeOnce.Do(func() { close(l.closing) })
	return nil
}

func (l *lateListener) Addr() net.Addr {
	return &net.UnixAddr{Name: "late", Net: "unix"}
}

func TestCloseClosesConnectionAcceptedDuringClose(t *testing.T) {
	t.Parallel()
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()
	listener := &lateListener{conn: serverSide, closing: make(chan struct{})}

	server := newServer(t, "late", listener, nil)

	closed := make(chan struct{})
	go func() {
		server.Close()
		close(closed)
	}()
	testutil.RequireClosed(t, closed, 5*time.Second, "Close hung on a connection accepted during Close")

	clientSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := clientSide.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("client read: got %v, want io.EOF", err)
	}
}
