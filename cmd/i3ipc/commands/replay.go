// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"filippo.io/age"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/i3ipc/capture"
	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/lib/codec"
)

// replayEntry is the --json form of a record.
type replayEntry struct {
	Seq       uint64          `json:"seq"`
	Time      time.Time       `json:"time"`
	Direction string          `json:"direction"`
	Type      string          `json:"type"`
	Event     bool            `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Verified  bool            `json:"verified"`
}

func replayCommand(streams Streams) *cli.Command {
	var (
		global   globalFlags
		output   outputFlags
		identity string
		diagnose bool
	)

	return &cli.Command{
		Name:    "replay",
		Summary: "Print the frames in a capture file",
		Description: `Read a capture written by "i3ipc record" and print its frames in
order: sequence number, time, direction, type, and payload.

Every payload is checked against its BLAKE3 digest. Records that fail
are still printed, marked "corrupt", and the command exits non-zero.
Encrypted captures need the age identity file that matches one of the
recipients.`,
		Usage: "i3ipc replay [flags] <file>",
		Examples: []cli.Example{
			{Description: "Print a capture as JSON lines", Command: "i3ipc replay --json session.i3cap"},
			{Description: "Decrypt with an age identity", Command: "i3ipc replay --identity ~/.config/age/key.txt session.i3cap"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			global.register(flagSet)
			output.register(flagSet, "print one JSON object per record")
			flagSet.StringVarP(&identity, "identity", "i", "", "age identity file for encrypted captures (default: config capture.identity)")
			flagSet.BoolVar(&diagnose, "diagnose", false, "print each record in CBOR diagnostic notation")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("usage: i3ipc replay [flags] <file>")
			}
			out, err := output.printer(streams.Stdout)
			if err != nil {
				return err
			}
			s, err := global.load(streams, "replay")
			if err != nil {
				return err
			}
			if identity != "" {
				s.config.Capture.Identity = identity
			}

			var identities []age.Identity
			if s.config.Capture.Identity != "" {
				identities, err = capture.LoadIdentities(s.config.Capture.Identity)
				if err != nil {
					return cli.Validation("%w", err)
				}
			}

			path := s.config.CapturePath(args[0])
			reader, err := capture.Open(path, identities...)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return cli.NotFound("capture %s does not exist", path)
				}
				if errors.Is(err, capture.ErrNotCapture) {
					return cli.Validation("%w", err)
				}
				return cli.Validation("%w", err).
					WithHint("Encrypted captures need --identity or capture.identity in the config file.")
			}
			defer reader.Close()

			header := reader.Header()
			s.logger.Info("replaying capture",
				"path", path,
				"version", header.Version,
				"compression", header.Compression.String(),
				"encrypted", header.Encrypted,
			)

			mode := replayText
			switch {
			case diagnose:
				mode = replayDiagnostic
			case output.json:
				mode = replayJSON
			}
			return s.replay(reader, out, mode)
		},
	}
}

type replayMode int

const (
	replayText replayMode = iota
	replayJSON
	replayDiagnostic
)

// replay prints every record of reader. Corrupt records are printed
// and counted; the count is reported once the stream is exhausted.
func (s *session) replay(reader *capture.Reader, out *printer, mode replayMode) error {
	corrupt := 0
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		verified := true
		if errors.Is(err, capture.ErrDigestMismatch) {
			s.logger.Warn("corrupt record", "seq", record.Seq, "error", err)
			corrupt++
			verified = false
		} else if err != nil {
			return cli.Internal("reading capture: %w", err)
		}

		if err := printRecord(out, record, verified, mode); err != nil {
			return err
		}
	}
	if corrupt > 0 {
		return cli.Internal("%d records failed digest verification", corrupt)
	}
	return nil
}

func printRecord(out *printer, record capture.Record, verified bool, mode replayMode) error {
	frame := record.Frame()
	typeName := frame.MessageType().String()
	if frame.IsEvent() {
		typeName = frame.EventCode().String()
	}

	switch mode {
	case replayDiagnostic:
		encoded, err := codec.Marshal(record)
		if err != nil {
			return cli.Internal("encoding record %d: %w", record.Seq, err)
		}
		notation, err := codec.Diagnose(encoded)
		if err != nil {
			return cli.Internal("diagnosing record %d: %w", record.Seq, err)
		}
		return out.println(notation)

	case replayJSON:
		payload := json.RawMessage(record.Payload)
		if !json.Valid(payload) {
			quoted, err := json.Marshal(string(record.Payload))
			if err != nil {
				return err
			}
			payload = quoted
		}
		data, err := json.Marshal(replayEntry{
			Seq:       record.Seq,
			Time:      record.Timestamp().UTC(),
			Direction: record.Direction.String(),
			Type:      typeName,
			Event:     frame.IsEvent(),
			Payload:   payload,
			Verified:  verified,
		})
		if err != nil {
			return cli.Internal("encoding record %d: %w", record.Seq, err)
		}
		return out.println(string(data))

	default:
		marker := ""
		if !verified {
			marker = " corrupt"
		}
		_, err := fmt.Fprintf(out.w, "%d\t%s\t%s\t%s%s\t%s\n",
			record.Seq,
			record.Timestamp().UTC().Format(time.RFC3339Nano),
			directionArrow(record.Direction),
			typeName,
			marker,
			record.Payload,
		)
		return err
	}
}

func directionArrow(direction ipc.Direction) string {
	switch direction {
	case ipc.DirectionSent:
		return ">"
	case ipc.DirectionReceived:
		return "<"
	default:
		return "?"
	}
}
