// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipctest provides a scripted IPC server for tests. It speaks
// the framing of package ipc on a real unix socket, so clients under
// test exercise the same code path as against a window manager.
package ipctest

import (
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/lib/testutil"
)

// Handler answers one request frame. It runs on the connection's read
// goroutine, so frames on one connection are handled in order.
type Handler func(conn *ServerConn, request ipc.Frame)

// Server accepts connections on a temporary unix socket.
type Server struct {
	t          testing.TB
	socketPath string
	listener   net.Listener
	handler    Handler
	accepted   chan *ServerConn

	mu     sync.Mutex
	conns  []*ServerConn
	closed bool
	wg     sync.WaitGroup
}

// NewServer starts a server. With a nil handler, request frames are
// queued on each ServerConn's Requests channel for the test to answer.
// The server shuts down when the test completes.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()

	socketPath := filepath.Join(testutil.SocketDir(t), "ipc.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listening on %s: %v", socketPath, err)
	}

	return newServer(t, socketPath, listener, handler)
}

func newServer(t testing.TB, socketPath string, listener net.Listener, handler Handler) *Server {
	server := &Server{
		t:          t,
		socketPath: socketPath,
		listener:   listener,
		handler:    handler,
		accepted:   make(chan *ServerConn, 16),
	}
	server.wg.Add(1)
	go server.acceptLoop()
	t.Cleanup(server.Close)
	return server
}

// SocketPath returns the path clients dial.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Accepted yields each connection as it is accepted.
func (s *Server) Accepted() <-chan *ServerConn {
	return s.accepted
}

// Close stops accepting, closes every connection, and waits for the
// server goroutines.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	conns := append([]*ServerConn(nil), s.conns...)
	s.mu.Unlock()
	s.listener.Close()
	for _, conn := range conns {
		conn.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		serverConn := &ServerConn{
			conn:     conn,
			requests: make(chan ipc.Frame, 64),
			closed:   make(chan struct{}),
		}
		s.mu.Lock()
		if s.closed {
			// Accepted after Close took its snapshot: nobody else will
			// close it.
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns = append(s.conns, serverConn)
		s.mu.Unlock()

		select {
		case s.accepted <- serverConn:
		default:
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(serverConn)
		}()
	}
}

func (s *Server) serve(conn *ServerConn) {
	defer close(conn.requests)
	defer close(conn.closed)
	for {
		frame, err := ipc.ReadFrame(conn.conn)
		if err != nil {
			return
		}
		conn.mu.Lock()
		conn.received = append(conn.received, frame)
		conn.mu.Unlock()

		if s.handler != nil {
			s.handler(conn, frame)
			continue
		}
		conn.requests <- frame
	}
}

// ServerConn is the server side of one client connection.
type ServerConn struct {
	conn     net.Conn
	requests chan ipc.Frame
	closed   chan struct{}

	writeMu sync.Mutex

	mu       sync.Mutex
	received []ipc.Frame
}

// Requests yields request frames when the server has no handler. It
// is closed when the client disconnects.
func (c *ServerConn) Requests() <-chan ipc.Frame {
	return c.requests
}

// Closed is closed when the client side has gone away.
func (c *ServerConn) Closed() <-chan struct{} {
	return c.closed
}

// Received returns every frame read so far.
func (c *ServerConn) Received() []ipc.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ipc.Frame(nil), c.received...)
}

// Reply sends a reply frame.
func (c *ServerConn) Reply(messageType ipc.MessageType, payload string) error {
	return c.WriteFrame(ipc.Frame{Type: uint32(messageType), Payload: []byte(payload)})
}

// SendEvent sends an event frame.
func (c *ServerConn) SendEvent(code ipc.EventCode, payload string) error {
	return c.WriteFrame(ipc.Frame{Type: code.FrameType(), Payload: []byte(payload)})
}

// WriteFrame writes one frame atomically with respect to other writes
// on this connection.
func (c *ServerConn) WriteFrame(frame ipc.Frame) error {
	return c.WriteRaw(ipc.EncodeFrame(frame.Type, frame.Payload))
}

// WriteRaw writes bytes verbatim, for sending broken or split frames.
func (c *ServerConn) WriteRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(data)
	return err
}

// Close closes the server side of the connection.
func (c *ServerConn) Close() {
	c.conn.Close()
}
