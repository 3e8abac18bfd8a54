// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic opens every frame.
const Magic = "i3-ipc"

// headerLength is magic + length + type.
const headerLength = len(Magic) + 4 + 4

// MaxPayloadLength bounds the payload a frame may announce. A layout
// tree of a large session is a few megabytes; anything near this
// limit means the stream is garbage.
const MaxPayloadLength = 64 * 1024 * 1024

// byteOrder is the order of the length and type fields. The protocol
// uses the writer's native order; see the package documentation.
var byteOrder = binary.NativeEndian

// ErrNeedMoreData is returned by DecodeFrame when the buffer does not
// yet hold a complete frame.
var ErrNeedMoreData = errors.New("ipc: need more data")

// Frame is one message on the wire.
type Frame struct {
	// Type is the raw type field, including the event flag.
	Type uint32

	// Payload is the JSON body, exactly as many bytes as the frame's
	// length field announced.
	Payload []byte
}

// IsEvent reports whether the frame carries an event.
func (f Frame) IsEvent() bool {
	return f.Type&eventFlag != 0
}

// MessageType returns the reply type. Meaningful only when !IsEvent().
func (f Frame) MessageType() MessageType {
	return MessageType(f.Type)
}

// EventCode returns the event code with the event flag cleared.
// Meaningful only when IsEvent().
func (f Frame) EventCode() EventCode {
	return EventCode(f.Type &^ eventFlag)
}

func (f Frame) String() string {
	if f.IsEvent() {
		return fmt.Sprintf("event %s (%d bytes)", f.EventCode(), len(f.Payload))
	}
	return fmt.Sprintf("reply %s (%d bytes)", f.MessageType(), len(f.Payload))
}

// EncodeFrame returns the wire encoding of a frame. The length field
// counts payload bytes, not characters.
func EncodeFrame(frameType uint32, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, headerLength+len(payload)), frameType, payload)
}

// AppendFrame appends the wire encoding of a frame to dst.
func AppendFrame(dst []byte, frameType uint32, payload []byte) []byte {
	dst = append(dst, Magic...)
	dst = byteOrder.AppendUint32(dst, uint32(len(payload)))
	dst = byteOrder.AppendUint32(dst, frameType)
	return append(dst, payload...)
}

// WriteFrame writes frame to w with a single Write call.
func WriteFrame(w io.Writer, frame Frame) error {
	if len(frame.Payload) > MaxPayloadLength {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(frame.Payload), MaxPayloadLength)
	}
	if _, err := w.Write(EncodeFrame(frame.Type, frame.Payload)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// DecodeFrame decodes the frame at the start of buffer. It returns the
// frame and the number of bytes it occupied. The payload is copied, so
// the caller may reuse buffer.
//
// ErrNeedMoreData means buffer holds only a prefix of a frame. A magic
// mismatch or an oversized length returns a *ProtocolError: the stream
// is out of sync and cannot be recovered.
func DecodeFrame(buffer []byte) (Frame, int, error) {
	available := min(len(buffer), len(Magic))
	if string(buffer[:available]) != Magic[:available] {
		return Frame{}, 0, &ProtocolError{Reason: fmt.Sprintf("bad magic %q", buffer[:available])}
	}
	if len(buffer) < headerLength {
		return Frame{}, 0, ErrNeedMoreData
	}

	payloadLength := byteOrder.Uint32(buffer[len(Magic):])
	frameType := byteOrder.Uint32(buffer[len(Magic)+4:])
	if payloadLength > MaxPayloadLength {
		return Frame{}, 0, &ProtocolError{
			Reason: fmt.Sprintf("payload length %d exceeds maximum %d", payloadLength, MaxPayloadLength),
		}
	}

	total := headerLength + int(payloadLength)
	if len(buffer) < total {
		return Frame{}, 0, ErrNeedMoreData
	}

	payload := make([]byte, payloadLength)
	copy(payload, buffer[headerLength:total])
	return Frame{Type: frameType, Payload: payload}, total, nil
}

// ReadFrame reads exactly one frame from r. It returns io.EOF if r is
// at end of stream before the first byte, and an error matching
// ErrTruncatedMessage if the stream ends inside a frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [headerLength]byte
	if read, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("%w: header ended after %d of %d bytes", ErrTruncatedMessage, read, headerLength)
		}
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}

	if _, _, err := DecodeFrame(header[:]); err != nil && !errors.Is(err, ErrNeedMoreData) {
		return Frame{}, err
	}

	payloadLength := byteOrder.Uint32(header[len(Magic):])
	frame := Frame{
		Type:    byteOrder.Uint32(header[len(Magic)+4:]),
		Payload: make([]byte, payloadLength),
	}
	if read, err := io.ReadFull(r, frame.Payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("%w: payload ended after %d of %d bytes", ErrTruncatedMessage, read, payloadLength)
		}
		return Frame{}, fmt.Errorf("read frame payload: %w", err)
	}
	return frame, nil
}
