// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"
	"io"
	"os"

	"filippo.io/age"

	"github.com/bureau-foundation/i3ipc/lib/codec"
)

// Reader reads records from a capture stream.
type Reader struct {
	header  Header
	decoder *codec.Decoder
	release func()
	file    *os.File
}

// Open opens the capture file at path. Identities are needed only for
// encrypted captures.
func Open(path string, identities ...age.Identity) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	reader, err := NewReader(file, identities...)
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.file = file
	return reader, nil
}

// NewReader reads a capture stream from r.
func NewReader(r io.Reader, identities ...age.Identity) (*Reader, error) {
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	body := r
	if header.Encrypted {
		if len(identities) == 0 {
			return nil, errors.New("capture is encrypted and no identity was given")
		}
		decrypted, err := age.Decrypt(r, identities...)
		if err != nil {
			return nil, fmt.Errorf("decrypting capture: %w", err)
		}
		body = decrypted
	}

	decompressed, release, err := decompressReader(body, header.Compression)
	if err != nil {
		return nil, err
	}
	return &Reader{
		header:  header,
		decoder: codec.NewDecoder(decompressed),
		release: release,
	}, nil
}

// Header returns the capture's file header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next record. It returns io.EOF after the last one,
// and an error matching ErrDigestMismatch for a corrupted record. A
// digest mismatch does not stop the stream; Next may be called again.
func (r *Reader) Next() (Record, error) {
	var record Record
	if err := r.decoder.Decode(&record); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decoding capture record: %w", err)
	}
	if err := record.Verify(); err != nil {
		return record, err
	}
	return record, nil
}

// Close releases decoder resources and closes the file if Open
// opened it.
func (r *Reader) Close() error {
	r.release()
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// LoadIdentities reads age identities (AGE-SECRET-KEY-1... lines,
// with # comments) from the file at path.
func LoadIdentities(path string) ([]age.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer file.Close()
	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	return identities, nil
}
