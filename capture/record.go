// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/i3ipc/ipc"
)

// ErrDigestMismatch reports a record whose payload does not hash to
// its stored digest.
var ErrDigestMismatch = errors.New("capture: record digest mismatch")

// Record is one captured frame.
type Record struct {
	// Seq numbers records from 1 in the order they were written.
	Seq uint64 `json:"seq" cbor:"1,keyasint"`

	// Time is when the frame was observed, in Unix nanoseconds.
	Time int64 `json:"time" cbor:"2,keyasint"`

	Direction ipc.Direction `json:"direction" cbor:"3,keyasint"`

	// Type is the raw frame type, event flag included.
	Type uint32 `json:"type" cbor:"4,keyasint"`

	Payload []byte `json:"payload" cbor:"5,keyasint"`

	// Digest is the BLAKE3-256 hash of Payload.
	Digest []byte `json:"digest" cbor:"6,keyasint"`
}

// Frame returns the captured frame.
func (r Record) Frame() ipc.Frame {
	return ipc.Frame{Type: r.Type, Payload: r.Payload}
}

// Timestamp returns Time as a time.Time.
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// Verify checks the payload against the digest.
func (r Record) Verify() error {
	digest := blake3.Sum256(r.Payload)
	if !bytes.Equal(digest[:], r.Digest) {
		return fmt.Errorf("%w: record %d (%s %s)", ErrDigestMismatch, r.Seq, r.Direction, r.Frame())
	}
	return nil
}

func newRecord(seq uint64, observed time.Time, direction ipc.Direction, frame ipc.Frame) Record {
	digest := blake3.Sum256(frame.Payload)
	return Record{
		Seq:       seq,
		Time:      observed.UnixNano(),
		Direction: direction,
		Type:      frame.Type,
		Payload:   frame.Payload,
		Digest:    digest[:],
	}
}
