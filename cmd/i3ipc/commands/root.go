// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/lib/version"
)

// commandFailedExitCode is the exit status when the window manager
// reports that a command or subscription failed.
const commandFailedExitCode = 2

// Root returns the i3ipc command tree writing to streams.
func Root(streams Streams) *cli.Command {
	var (
		connection  connectionFlags
		output      outputFlags
		typeName    string
		monitor     bool
		count       int
		quiet       bool
		raw         bool
		showVersion bool
	)

	return &cli.Command{
		Name:    "i3ipc",
		Summary: "Send messages to the i3 window manager over its IPC socket",
		Description: `Send one message to i3 and print the reply.

The words after the flags form the payload. For the default message
type, "command", the payload is a list of i3 commands. For "subscribe"
it is a JSON array of event names; with --monitor the events are
printed as they arrive.

A failed command exits with status 2 after printing the reply.

Subcommands are recognized only as the first argument. Once a flag
comes first, every remaining word is payload: "i3ipc -s PATH tree"
sends the i3 command "tree". Put connection flags after the
subcommand name instead ("i3ipc tree -s PATH").`,
		Usage: "i3ipc [flags] [payload...]\n  i3ipc <command> [flags]",
		Examples: []cli.Example{
			{Description: "Focus the window to the left", Command: "i3ipc focus left"},
			{Description: "Print the workspace list", Command: "i3ipc -t get_workspaces"},
			{Description: "Follow window events", Command: `i3ipc -t subscribe -m '["window"]'`},
		},
		HelpOutput: streams.Stderr,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("i3ipc", pflag.ContinueOnError)
			connection.register(flagSet)
			output.register(flagSet, "")
			flagSet.StringVarP(&typeName, "type", "t", "command", "message type: "+strings.Join(ipc.MessageTypeNames(), ", "))
			flagSet.BoolVarP(&monitor, "monitor", "m", false, "with -t subscribe, print events until interrupted")
			flagSet.IntVar(&count, "count", 0, "with --monitor, exit after this many events")
			flagSet.BoolVarP(&quiet, "quiet", "q", false, "print nothing on success")
			flagSet.BoolVarP(&raw, "raw", "r", false, "print the reply payload exactly as received")
			flagSet.BoolVar(&showVersion, "version", false, "print the i3ipc version and exit")
			flagSet.SetInterspersed(false)
			return flagSet
		},
		Subcommands: []*cli.Command{
			treeCommand(streams),
			findCommand(streams),
			recordCommand(streams),
			replayCommand(streams),
			versionCommand(streams),
		},
		Run: func(args []string) error {
			if showVersion {
				_, err := fmt.Fprintf(streams.Stdout, "i3ipc %s\n", version.Info())
				return err
			}

			messageType, err := ipc.ParseMessageType(typeName)
			if err != nil {
				return cli.Validation("%w", err)
			}
			if monitor && messageType != ipc.MessageSubscribe {
				return cli.Validation("--monitor requires -t subscribe")
			}

			out, err := output.printer(streams.Stdout)
			if err != nil {
				return err
			}
			s, err := connection.load(streams, "i3ipc")
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			payload := strings.Join(args, " ")
			if monitor {
				return s.monitor(ctx, out, payload, count)
			}
			return s.send(ctx, out, messageType, payload, sendOptions{quiet: quiet, raw: raw})
		},
	}
}

type sendOptions struct {
	quiet bool
	raw   bool
}

// send issues one request and prints its reply.
func (s *session) send(ctx context.Context, out *printer, messageType ipc.MessageType, payload string, options sendOptions) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	reply, err := conn.Request(ctx, messageType, []byte(payload))
	if err != nil {
		return cli.Classify(fmt.Errorf("%s: %w", messageType, err))
	}

	if !options.quiet {
		if options.raw {
			if _, err := fmt.Fprintf(out.w, "%s\n", reply); err != nil {
				return err
			}
		} else if err := out.printJSON(reply); err != nil {
			return err
		}
	}

	decoded, err := ipc.DecodeReply(messageType, reply)
	if err != nil {
		return cli.Internal("%w", err)
	}
	return s.checkReply(decoded)
}

// checkReply turns a reported failure into the command-failed exit
// status, describing it on stderr.
func (s *session) checkReply(reply ipc.Reply) error {
	var failure error
	switch reply := reply.(type) {
	case ipc.CommandReply:
		failure = reply.Err()
	case ipc.SubscribeReply:
		if !reply.Success {
			failure = fmt.Errorf("subscription rejected")
		}
	}
	if failure == nil {
		return nil
	}
	fmt.Fprintf(s.streams.Stderr, "i3ipc: %v\n", failure)
	return &cli.ExitError{Code: commandFailedExitCode}
}

// monitor subscribes to the events named in payload and prints each
// one until ctx ends, the connection drops, or limit events arrive.
func (s *session) monitor(ctx context.Context, out *printer, payload string, limit int) error {
	var names []string
	if err := json.Unmarshal([]byte(payload), &names); err != nil || len(names) == 0 {
		return cli.Validation(`subscribe payload must be a JSON array of event names, such as '["window"]'`)
	}
	codes, err := parseEventCodes(names)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Listeners run on the connection's delivery goroutine; printing
	// happens here so output stops when monitor returns.
	payloads := make(chan []byte)
	for _, code := range codes {
		conn.AddListener(code, func(event ipc.Event) error {
			data, err := eventJSON(event)
			if err != nil {
				return err
			}
			select {
			case payloads <- data:
			case <-ctx.Done():
			}
			return nil
		})
	}

	if err := conn.Subscribe(ctx, codes...); err != nil {
		return cli.Classify(err)
	}
	s.logger.Info("monitoring events", "events", names)

	printed := 0
	for {
		select {
		case data := <-payloads:
			if err := out.printJSON(data); err != nil {
				return err
			}
			printed++
			if limit > 0 && printed >= limit {
				return nil
			}
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return cli.Transient("connection lost: %w", conn.Err())
		}
	}
}

// parseEventCodes maps event names to codes.
func parseEventCodes(names []string) ([]ipc.EventCode, error) {
	codes := make([]ipc.EventCode, len(names))
	for index, name := range names {
		code, err := ipc.ParseEventCode(name)
		if err != nil {
			return nil, cli.Validation("%w", err)
		}
		codes[index] = code
	}
	return codes, nil
}

func versionCommand(streams Streams) *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the i3ipc version and build information",
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("version takes no arguments")
			}
			_, err := fmt.Fprintf(streams.Stdout, "i3ipc %s\n", version.Info())
			return err
		},
	}
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
