// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc is a client for the i3 window manager IPC protocol: a
// binary-framed, JSON-payload protocol spoken over a local unix
// stream socket.
//
// Every message on the wire is a frame:
//
//	"i3-ipc" ‖ length (uint32) ‖ type (uint32) ‖ payload (length bytes)
//
// The payload is UTF-8 JSON with no terminator. A type with bit 31
// set is an event; the low 31 bits are the [EventCode]. Otherwise the
// type is a [MessageType] and the frame is the reply to the oldest
// outstanding request of that type. See [EncodeFrame] and
// [DecodeFrame].
//
// The two integers are in the byte order of the process that wrote
// them. This package fixes that order at build time to the host order
// ([binary.NativeEndian]) and never negotiates it, so a client can only
// talk to a server of the same endianness. Over a local socket that is
// always the case.
//
// [Conn] owns one socket. A single goroutine reads frames in arrival
// order and routes them: replies to the pending request of the same
// type (FIFO per type, since the protocol carries no request id) and
// events to listeners registered with [Conn.AddListener]. Writes go
// through one lock, so frames never interleave. Two requests of the
// same type issued concurrently are answered in the order they were
// written; callers that cannot tolerate that must serialize them or
// use separate connections.
//
// Event listeners run on a dedicated delivery goroutine fed by a
// bounded queue. When a listener is slow and the queue fills, new
// events are dropped and logged rather than stalling the reader.
//
// Replies and events decode into tagged variants selected by type
// code ([DecodeReply], [DecodeEvent]). Codes this package does not
// know decode to [UnknownReply] and [UnknownEvent] carrying the raw
// JSON. The layout tree decodes into [Node] ([BuildTree]).
//
// Failures are reported with the sentinels [ErrProtocol],
// [ErrTruncatedMessage], [ErrMalformedPayload], [ErrConnectionClosed],
// [ErrTimeout], and [ErrSpuriousReply]. Bad magic and truncated frames
// are fatal to the connection; once a connection is dead every call
// fails immediately with an error matching ErrConnectionClosed.
//
// Locating the socket (I3SOCK, the I3_SOCKET_PATH X11 property) is the
// caller's job; [Dial] takes the path as given.
package ipc
