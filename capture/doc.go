// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records IPC traffic to a file and reads it back.
//
// A capture file is a five-byte magic "i3cap", a format version byte,
// a compression byte, and an encryption byte, followed by the body.
// The body is a stream of CBOR records, one per frame, optionally
// compressed (zstd or lz4 frame format) and then optionally encrypted
// to age recipients. Each record carries a BLAKE3-256 digest of its
// payload so that corruption is detected per record on replay.
//
// A Recorder implements ipc.FrameObserver:
//
//	recorder, err := capture.Create(path, capture.Config{Compression: capture.CompressionZstd})
//	conn, err := ipc.Dial(ctx, socketPath, ipc.WithFrameObserver(recorder))
//	...
//	conn.Close()
//	recorder.Close()
package capture
