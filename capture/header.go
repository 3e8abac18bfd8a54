// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"
	"io"
)

// magic opens every capture file.
const magic = "i3cap"

// formatVersion is the only version this package writes and reads.
const formatVersion = 1

const headerLength = len(magic) + 3

// ErrNotCapture reports a file that does not start with the capture
// magic.
var ErrNotCapture = errors.New("capture: not a capture file")

// Header is the fixed prefix of a capture file.
type Header struct {
	Version     uint8
	Compression Compression
	Encrypted   bool
}

func (h Header) encode() []byte {
	encrypted := byte(0)
	if h.Encrypted {
		encrypted = 1
	}
	return append([]byte(magic), h.Version, byte(h.Compression), encrypted)
}

func readHeader(r io.Reader) (Header, error) {
	var buffer [headerLength]byte
	if _, err := io.ReadFull(r, buffer[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: file shorter than header", ErrNotCapture)
		}
		return Header{}, fmt.Errorf("reading capture header: %w", err)
	}
	if string(buffer[:len(magic)]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrNotCapture, buffer[:len(magic)])
	}

	header := Header{
		Version:     buffer[len(magic)],
		Compression: Compression(buffer[len(magic)+1]),
		Encrypted:   buffer[len(magic)+2] != 0,
	}
	if header.Version != formatVersion {
		return Header{}, fmt.Errorf("unsupported capture format version %d (want %d)", header.Version, formatVersion)
	}
	return header, nil
}
