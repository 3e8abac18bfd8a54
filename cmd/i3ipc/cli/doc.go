// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the i3ipc command.
//
// The central type is [Command], which represents a named subcommand with
// optional nested [Command.Subcommands], a [pflag.FlagSet] factory, and a
// Run function. Commands are assembled into a tree by the commands
// package and dispatched via [Command.Execute], which handles flag
// parsing, subcommand routing, and help output with examples.
//
// A command with both Subcommands and Run falls through to Run when the
// first argument names no subcommand. The root command uses this to
// accept a raw message ("i3ipc -t get_tree") alongside "i3ipc tree".
//
// Unknown subcommands and flags get a suggestion computed by
// Levenshtein edit distance (threshold: distance <= 3).
//
// Errors returned from Run may carry an exit code ([ExitError]) or a
// category ([ToolError]); main maps both to the process exit status.
package cli
