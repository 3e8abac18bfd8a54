// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/i3ipc/lib/clock"
	"github.com/bureau-foundation/i3ipc/lib/netutil"
)

// readChunkSize is how much the reader asks the kernel for at once.
const readChunkSize = 32 * 1024

// listenerDrainTimeout bounds how long Close waits for queued events
// to reach their listeners. Wall-clock, like socket deadlines.
const listenerDrainTimeout = time.Second

// Conn is a connection to the window manager's IPC socket. It is safe
// for concurrent use. Close it when done.
type Conn struct {
	conn           net.Conn
	logger         *slog.Logger
	clock          clock.Clock
	requestTimeout time.Duration
	eventBuffer    int
	observer       FrameObserver

	dispatcher *dispatcher

	// writeLock is a one-slot semaphore serializing frame writes and
	// the enqueue that precedes each one. A channel rather than a mutex
	// so that waiting callers can give up when their deadline passes.
	writeLock chan struct{}

	closeOnce sync.Once

	// done is closed when the reader goroutine has exited and the
	// connection is terminal.
	done chan struct{}

	errMu sync.Mutex
	err   error
}

// Dial connects to the unix socket at socketPath.
func Dial(ctx context.Context, socketPath string, options ...Option) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", socketPath, err)
	}
	c := NewConn(conn, options...)

	if unixConn, ok := conn.(*net.UnixConn); ok {
		if credentials, err := netutil.ReadPeerCredentials(unixConn); err == nil {
			c.logger.Debug("connected to window manager",
				"socket", socketPath,
				"peer_pid", credentials.PID,
				"peer_uid", credentials.UID,
			)
		} else {
			c.logger.Debug("connected to window manager", "socket", socketPath, "peer_error", err)
		}
	}
	return c, nil
}

// NewConn wraps an established stream connection and starts reading
// from it. The Conn takes ownership of conn.
func NewConn(conn net.Conn, options ...Option) *Conn {
	c := &Conn{
		conn:   conn,
		logger: slog.New(slog.DiscardHandler),
		clock:     clock.Real(),
		writeLock: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	c.dispatcher = newDispatcher(c.logger, c.eventBuffer)
	go c.readLoop()
	return c
}

// Close closes the socket and waits for the reader to exit. Pending
// requests fail with ErrConnectionClosed. Events already queued are
// still delivered; Close waits up to listenerDrainTimeout for that to
// finish. A listener that outlives the wait, or one that calls Close
// itself, keeps running after Close returns. Safe to call more than
// once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.dispatcher.fail(ErrConnectionClosed)
		err = c.conn.Close()
	})
	<-c.done

	drainTimer := time.NewTimer(listenerDrainTimeout)
	defer drainTimer.Stop()
	select {
	case <-c.dispatcher.delivered:
	case <-drainTimer.C:
		c.logger.Warn("event listeners still running after close", "waited", listenerDrainTimeout)
	}

	if netutil.IsExpectedCloseError(err) {
		return nil
	}
	return err
}

// Done returns a channel closed once the connection is terminal.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is alive. The
// error matches ErrConnectionClosed and wraps the cause (for example
// ErrProtocol or ErrTruncatedMessage).
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// DroppedEvents returns how many events were dropped because the
// delivery queue was full.
func (c *Conn) DroppedEvents() uint64 {
	return c.dispatcher.droppedEvents.Load()
}

// SpuriousReplies returns how many replies arrived with no pending
// request of their type.
func (c *Conn) SpuriousReplies() uint64 {
	return c.dispatcher.spuriousReplies.Load()
}

// AddListener registers listener for events with the given code and
// returns a function that unregisters it. Listeners for one code run
// in registration order. Registering does not subscribe; see
// Subscribe.
func (c *Conn) AddListener(code EventCode, listener Listener) (remove func()) {
	return c.dispatcher.addListener(code, listener)
}

// Request sends a frame of messageType with payload and waits for the
// reply payload.
//
// It returns when the reply arrives, when ctx is done, when the
// connection's default request timeout passes (only if ctx has no
// deadline), or when the connection dies. The same bounds apply while
// waiting to write and while writing: a server that stops reading
// cannot hold the caller past its deadline. Deadlines yield an error
// matching ErrTimeout; a dead connection one matching
// ErrConnectionClosed. A reply that arrives after the caller gave up
// is discarded.
func (c *Conn) Request(ctx context.Context, messageType MessageType, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, requestContextError(messageType, err)
	}

	writeDeadline, hasDeadline := ctx.Deadline()
	var timedOut <-chan struct{}
	if !hasDeadline && c.requestTimeout > 0 {
		expired := make(chan struct{})
		timer := c.clock.AfterFunc(c.requestTimeout, func() { close(expired) })
		defer timer.Stop()
		timedOut = expired
		// Socket deadlines are wall-clock regardless of c.clock.
		writeDeadline = time.Now().Add(c.requestTimeout)
	}

	request, err := c.send(ctx, timedOut, writeDeadline, messageType, payload)
	if err != nil {
		return nil, err
	}

	select {
	case result := <-request.result:
		if result.err != nil {
			return nil, fmt.Errorf("%s request: %w", messageType, result.err)
		}
		return result.payload, nil
	case <-ctx.Done():
		c.dispatcher.abandon(request)
		return nil, requestContextError(messageType, ctx.Err())
	case <-timedOut:
		c.dispatcher.abandon(request)
		return nil, c.timeoutError(messageType)
	}
}

func requestContextError(messageType MessageType, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, messageType, err)
	}
	return fmt.Errorf("%s request: %w", messageType, err)
}

func (c *Conn) timeoutError(messageType MessageType) error {
	return fmt.Errorf("%w: %s after %v", ErrTimeout, messageType, c.requestTimeout)
}

// send acquires the write lock, enqueues the pending slot, and writes
// the frame. Acquisition gives up when ctx is done, timedOut fires, or
// the connection dies. A zero writeDeadline leaves the write unbounded.
func (c *Conn) send(ctx context.Context, timedOut <-chan struct{}, writeDeadline time.Time, messageType MessageType, payload []byte) (*pendingRequest, error) {
	select {
	case c.writeLock <- struct{}{}:
	case <-ctx.Done():
		return nil, requestContextError(messageType, ctx.Err())
	case <-timedOut:
		return nil, c.timeoutError(messageType)
	case <-c.done:
		return nil, fmt.Errorf("%s request: %w", messageType, c.Err())
	}
	defer func() { <-c.writeLock }()

	request, err := c.dispatcher.enqueue(messageType)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", messageType, err)
	}

	frame := Frame{Type: uint32(messageType), Payload: payload}
	if c.observer != nil {
		c.observer.ObserveFrame(DirectionSent, frame)
	}
	c.conn.SetWriteDeadline(writeDeadline)
	err = WriteFrame(c.conn, frame)
	c.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		// A partial frame may be on the wire: nothing after it can be
		// parsed by the server.
		cause := fmt.Errorf("%w: writing %s: %w", ErrConnectionClosed, messageType, err)
		c.dispatcher.fail(cause)
		c.conn.Close()
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("%w: writing %s: %w", ErrTimeout, messageType, cause)
		}
		return nil, cause
	}
	return request, nil
}

// readLoop is the connection's only reader. It reassembles frames from
// arbitrary read boundaries and routes them in arrival order.
func (c *Conn) readLoop() {
	var cause error
	defer func() { c.shutdown(cause) }()

	buffer := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	for {
		read, readErr := c.conn.Read(chunk)
		buffer = append(buffer, chunk[:read]...)

		consumed, err := c.routeFrames(buffer)
		remaining := copy(buffer, buffer[consumed:])
		buffer = buffer[:remaining]
		if err != nil {
			cause = err
			return
		}

		if readErr != nil {
			switch {
			case len(buffer) > 0 && netutil.IsExpectedCloseError(readErr):
				cause = fmt.Errorf("%w: stream ended with %d bytes of an incomplete frame", ErrTruncatedMessage, len(buffer))
			case netutil.IsExpectedCloseError(readErr):
				cause = ErrConnectionClosed
			default:
				cause = fmt.Errorf("%w: %w", ErrConnectionClosed, readErr)
			}
			return
		}
	}
}

// routeFrames decodes and routes every complete frame at the start of
// buffer and returns the number of bytes consumed.
func (c *Conn) routeFrames(buffer []byte) (int, error) {
	offset := 0
	for {
		frame, length, err := DecodeFrame(buffer[offset:])
		if errors.Is(err, ErrNeedMoreData) {
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		offset += length
		if c.observer != nil {
			c.observer.ObserveFrame(DirectionReceived, frame)
		}
		c.dispatcher.route(frame)
	}
}

// shutdown makes the connection terminal. Runs once, on the reader.
func (c *Conn) shutdown(cause error) {
	terminal := cause
	if !errors.Is(terminal, ErrConnectionClosed) {
		terminal = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}

	switch {
	case errors.Is(cause, ErrProtocol), errors.Is(cause, ErrTruncatedMessage):
		c.logger.Error("connection failed", "error", cause)
	default:
		c.logger.Debug("connection closed", "error", cause)
	}

	c.errMu.Lock()
	c.err = terminal
	c.errMu.Unlock()

	c.dispatcher.fail(terminal)
	c.dispatcher.closeEvents()
	c.conn.Close()
	close(c.done)
}
