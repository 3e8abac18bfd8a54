// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for i3ipc packages.
//
// [SocketDir] creates a short directory under /tmp for unix sockets,
// whose paths are limited to 108 bytes (sun_path), which t.TempDir()
// routinely exceeds.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so that tests never hang on a lost message. They are
// the only place in the test suite that waits on wall-clock time.
//
// [UniqueID] produces distinct tags for synthetic payloads, so that a
// reply can be traced back to the request that caused it.
//
// All helpers call t.Fatalf on failure.
package testutil
