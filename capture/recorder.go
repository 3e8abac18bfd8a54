// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"filippo.io/age"

	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/lib/clock"
	"github.com/bureau-foundation/i3ipc/lib/codec"
)

// Config configures a Recorder.
type Config struct {
	Compression Compression

	// Recipients are age public keys (age1...). When non-empty the
	// body is encrypted to all of them.
	Recipients []string

	// Logger reports the first write failure. Defaults to discarding.
	Logger *slog.Logger

	// Clock stamps records. Defaults to the real clock.
	Clock clock.Clock
}

// Recorder writes observed frames to a capture stream. It is safe for
// concurrent use. After the first write error it stops recording and
// Err returns that error.
type Recorder struct {
	logger *slog.Logger
	clock  clock.Clock

	mu      sync.Mutex
	encoder *codec.Encoder
	// layers are closed in order: compressor, encryptor, then the
	// underlying file if the Recorder owns it.
	layers []io.Closer
	seq    uint64
	err    error
	closed bool
}

// Create creates (or truncates) the file at path and returns a
// Recorder writing to it. Close the Recorder to flush and close the
// file.
func Create(path string, config Config) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	recorder, err := newRecorder(file, config)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	recorder.layers = append(recorder.layers, file)
	return recorder, nil
}

// NewRecorder returns a Recorder writing to w. Close flushes the
// stream but does not close w.
func NewRecorder(w io.Writer, config Config) (*Recorder, error) {
	return newRecorder(w, config)
}

func newRecorder(w io.Writer, config Config) (*Recorder, error) {
	recorder := &Recorder{
		logger: config.Logger,
		clock:  config.Clock,
	}
	if recorder.logger == nil {
		recorder.logger = slog.New(slog.DiscardHandler)
	}
	if recorder.clock == nil {
		recorder.clock = clock.Real()
	}

	header := Header{
		Version:     formatVersion,
		Compression: config.Compression,
		Encrypted:   len(config.Recipients) > 0,
	}
	if _, err := w.Write(header.encode()); err != nil {
		return nil, fmt.Errorf("writing capture header: %w", err)
	}

	body := w
	if header.Encrypted {
		recipients, err := parseRecipients(config.Recipients)
		if err != nil {
			return nil, err
		}
		encryptor, err := age.Encrypt(w, recipients...)
		if err != nil {
			return nil, fmt.Errorf("creating age encryptor: %w", err)
		}
		recorder.layers = append(recorder.layers, encryptor)
		body = encryptor
	}

	compressor, err := compressWriter(body, config.Compression)
	if err != nil {
		return nil, err
	}
	// The compressor is flushed before the encryptor is finalized.
	recorder.layers = append([]io.Closer{compressor}, recorder.layers...)
	recorder.encoder = codec.NewEncoder(compressor)
	return recorder, nil
}

func parseRecipients(keys []string) ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// ObserveFrame appends a record for frame. Errors are kept for Err.
func (r *Recorder) ObserveFrame(direction ipc.Direction, frame ipc.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.err != nil {
		return
	}
	r.seq++
	record := newRecord(r.seq, r.clock.Now(), direction, frame)
	if err := r.encoder.Encode(record); err != nil {
		r.err = fmt.Errorf("writing capture record %d: %w", record.Seq, err)
		r.logger.Warn("capture stopped", "error", r.err)
	}
}

// Records returns the number of records written.
func (r *Recorder) Records() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Err returns the first write error, or nil.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close flushes the stream and closes the file if the Recorder
// created it. Returns the first write error if recording had failed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true
	for _, layer := range r.layers {
		if err := layer.Close(); err != nil && r.err == nil {
			r.err = fmt.Errorf("closing capture: %w", err)
		}
	}
	return r.err
}
