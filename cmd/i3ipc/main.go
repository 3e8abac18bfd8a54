// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// i3ipc sends messages to the i3 window manager over its IPC socket,
// prints the layout tree, and records and replays IPC traffic.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/commands"
)

func main() {
	err := commands.Root(commands.StandardStreams()).Execute(os.Args[1:])
	os.Exit(exitStatus(err, os.Stderr))
}

// exitStatus reports err on stderr and returns the process exit code.
// Commands that print their own output return a *cli.ExitError and
// get no extra "error:" line.
func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
