// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides socket helpers for the IPC client: telling
// an ordinary connection teardown from a failure, and reading the
// kernel-reported credentials of a unix socket peer.
package netutil
