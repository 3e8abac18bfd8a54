// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/i3ipc/lib/clock"
)

// Direction says whether an observed frame was sent or received.
type Direction uint8

const (
	// DirectionSent marks a frame written by this client.
	DirectionSent Direction = 1

	// DirectionReceived marks a frame read from the server.
	DirectionReceived Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirectionSent:
		return "sent"
	case DirectionReceived:
		return "received"
	default:
		return "unknown"
	}
}

// FrameObserver sees every frame a connection sends or receives, in
// wire order for each direction. A sent frame is observed before it
// is written, so it always precedes its reply. ObserveFrame runs on
// the reader or on the writing caller's goroutine and must not block.
type FrameObserver interface {
	ObserveFrame(direction Direction, frame Frame)
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithClock sets the clock used for request timeouts. Tests inject
// clock.Fake().
func WithClock(c clock.Clock) Option {
	return func(conn *Conn) {
		conn.clock = c
	}
}

// WithRequestTimeout bounds requests whose context has no deadline.
// Zero (the default) means wait until the reply or the connection
// closes.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Conn) {
		c.requestTimeout = timeout
	}
}

// WithEventBuffer sets how many events may wait for delivery before
// new ones are dropped. Defaults to DefaultEventBuffer.
func WithEventBuffer(size int) Option {
	return func(c *Conn) {
		c.eventBuffer = size
	}
}

// WithFrameObserver installs an observer for all traffic, for example
// a capture recorder.
func WithFrameObserver(observer FrameObserver) Option {
	return func(c *Conn) {
		c.observer = observer
	}
}
