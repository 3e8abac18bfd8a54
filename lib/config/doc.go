// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads i3ipc configuration.
//
// Configuration is loaded from a single file specified by either the
// I3IPC_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Without a file
// the command uses [Default].
//
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas; anything else is YAML.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${I3SOCK}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- socket path, request timeout, event buffer, log
//     level, and capture settings
//   - [Default] -- returns a Config with defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [DiscoverSocketPath] -- asks the window manager binary for its
//     socket when nothing else names one
//
// This package depends on no other i3ipc packages.
package config
