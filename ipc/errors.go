// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Match them with errors.Is; the concrete errors
// returned carry detail.
var (
	// ErrProtocol reports a desynchronized stream (bad magic or an
	// impossible length). Fatal to the connection.
	ErrProtocol = errors.New("ipc: protocol error")

	// ErrTruncatedMessage reports end of stream inside a frame.
	// Fatal to the connection.
	ErrTruncatedMessage = errors.New("ipc: truncated message")

	// ErrMalformedPayload reports a well-framed payload that is not the
	// JSON expected for its type. Affects only that message.
	ErrMalformedPayload = errors.New("ipc: malformed payload")

	// ErrConnectionClosed reports that the connection is gone. Every
	// pending and future request on it fails with this error.
	ErrConnectionClosed = errors.New("ipc: connection closed")

	// ErrTimeout reports that a request's deadline passed before its
	// reply arrived. The connection remains usable.
	ErrTimeout = errors.New("ipc: request timed out")

	// ErrSpuriousReply reports a reply for which no request was
	// pending. Logged, never returned to a caller.
	ErrSpuriousReply = errors.New("ipc: spurious reply")
)

// ProtocolError describes why the stream is unusable.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "ipc: protocol error: " + e.Reason
}

// Is makes errors.Is(err, ErrProtocol) true.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// MalformedPayloadError describes a payload that failed to decode.
type MalformedPayloadError struct {
	// Type is the raw frame type, including the event flag.
	Type uint32

	// Err is the underlying JSON error.
	Err error
}

func (e *MalformedPayloadError) Error() string {
	frame := Frame{Type: e.Type}
	var kind string
	if frame.IsEvent() {
		kind = "event " + frame.EventCode().String()
	} else {
		kind = "reply " + frame.MessageType().String()
	}
	return fmt.Sprintf("ipc: malformed payload in %s: %v", kind, e.Err)
}

// Is makes errors.Is(err, ErrMalformedPayload) true.
func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// SpuriousReplyError describes a reply that matched no pending request.
type SpuriousReplyError struct {
	Type   MessageType
	Length int
}

func (e *SpuriousReplyError) Error() string {
	return fmt.Sprintf("ipc: spurious %s reply (%d bytes) with no pending request", e.Type, e.Length)
}

// Is makes errors.Is(err, ErrSpuriousReply) true.
func (e *SpuriousReplyError) Is(target error) bool {
	return target == ErrSpuriousReply
}

// CommandError is returned by Conn.Command when the window manager
// rejected at least one of the commands in the payload.
type CommandError struct {
	// Results is the full reply, successes included.
	Results CommandReply
}

func (e *CommandError) Error() string {
	var messages []string
	for index, result := range e.Results {
		if result.Success {
			continue
		}
		message := result.Error
		if message == "" {
			message = "failed"
		}
		messages = append(messages, fmt.Sprintf("command %d: %s", index, message))
	}
	return "ipc: " + strings.Join(messages, "; ")
}
