// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/i3ipc/capture"
	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/ipc"
)

func recordCommand(streams Streams) *cli.Command {
	var (
		connection  connectionFlags
		compression string
		recipients  []string
		duration    time.Duration
		count       int
	)

	return &cli.Command{
		Name:    "record",
		Summary: "Capture IPC traffic to a file",
		Description: `Subscribe to the named events and write every frame sent and
received on the connection to a capture file, until interrupted.

A bare file name is placed in the capture directory from the config
file. The capture is compressed (zstd by default) and, when age
recipients are configured or given, encrypted to them. Read it back
with "i3ipc replay".`,
		Usage: "i3ipc record [flags] <file> <event>...",
		Examples: []cli.Example{
			{Description: "Record window and workspace events for a minute", Command: "i3ipc record --duration 1m session.i3cap window workspace"},
			{Description: "Record encrypted to an age key", Command: "i3ipc record --recipient age1... focus.i3cap window"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("record", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&compression, "compression", "", "none, zstd, or lz4 (default: config capture.compression)")
			flagSet.StringArrayVar(&recipients, "recipient", nil, "encrypt to this age public key, in addition to configured recipients (repeatable)")
			flagSet.DurationVar(&duration, "duration", 0, "stop after this long, 0 to record until interrupted")
			flagSet.IntVar(&count, "count", 0, "stop after this many events, 0 for no limit")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 2 {
				return cli.Validation("usage: i3ipc record [flags] <file> <event>...")
			}
			codes, err := parseEventCodes(args[1:])
			if err != nil {
				return err
			}
			s, err := connection.load(streams, "record")
			if err != nil {
				return err
			}
			if compression != "" {
				s.config.Capture.Compression = compression
			}
			algorithm, err := capture.ParseCompression(s.config.Capture.Compression)
			if err != nil {
				return cli.Validation("%w", err)
			}

			ctx, stop := signalContext()
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			path := s.config.CapturePath(args[0])
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return cli.Internal("creating capture directory: %w", err)
			}
			return s.record(ctx, path, codes, capture.Config{
				Compression: algorithm,
				Recipients:  append(append([]string(nil), s.config.Capture.Recipients...), recipients...),
				Logger:      s.logger,
			}, count)
		},
	}
}

// record captures the connection's traffic to path until ctx ends, the
// connection drops, or limit events arrive.
func (s *session) record(ctx context.Context, path string, codes []ipc.EventCode, captureConfig capture.Config, limit int) (err error) {
	recorder, err := capture.Create(path, captureConfig)
	if err != nil {
		return cli.Validation("%w", err)
	}
	defer func() {
		if closeErr := recorder.Close(); closeErr != nil && err == nil {
			err = cli.Internal("finishing capture: %w", closeErr)
		}
		if err == nil {
			s.logger.Info("capture written", "path", path, "records", recorder.Records())
			_, err = fmt.Fprintf(s.streams.Stdout, "%s\t%d records\n", path, recorder.Records())
		}
	}()

	conn, err := s.dial(ctx, ipc.WithFrameObserver(recorder))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	arrived := make(chan struct{}, 1)
	for _, code := range codes {
		conn.AddListener(code, func(ipc.Event) error {
			select {
			case arrived <- struct{}{}:
			case <-ctx.Done():
			}
			return nil
		})
	}

	if err := conn.Subscribe(ctx, codes...); err != nil {
		return cli.Classify(err)
	}
	s.logger.Info("recording", "path", path, "events", len(codes))

	seen := 0
	for {
		select {
		case <-arrived:
			seen++
			if limit > 0 && seen >= limit {
				return recorderErr(recorder)
			}
		case <-ctx.Done():
			return recorderErr(recorder)
		case <-conn.Done():
			if errors.Is(conn.Err(), ipc.ErrProtocol) {
				return cli.Internal("connection failed: %w", conn.Err())
			}
			s.logger.Warn("connection closed by window manager", "error", conn.Err())
			return recorderErr(recorder)
		}
	}
}

func recorderErr(recorder *capture.Recorder) error {
	if err := recorder.Err(); err != nil {
		return cli.Internal("writing capture: %w", err)
	}
	return nil
}
