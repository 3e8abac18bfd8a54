// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// everything in i3ipc that persists data.
//
// The window manager protocol itself is JSON and never goes through
// this package. CBOR is used for the files i3ipc writes: capture
// streams of recorded frames. Encoding uses Core Deterministic
// Encoding (RFC 8949 §4.2), so identical records produce identical
// bytes and digests over encoded records are stable.
//
// For buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For streams:
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types serialized only as CBOR use `cbor` struct tags.
package codec
