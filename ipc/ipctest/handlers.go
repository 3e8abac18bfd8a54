// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipctest

import (
	"github.com/bureau-foundation/i3ipc/ipc"
)

// StaticReplies answers each request with the canned payload for its
// type. Requests of other types get no reply. A SUBSCRIBE request
// with no canned payload is answered with {"success":true}.
func StaticReplies(replies map[ipc.MessageType]string) Handler {
	return func(conn *ServerConn, request ipc.Frame) {
		messageType := request.MessageType()
		payload, ok := replies[messageType]
		if !ok && messageType == ipc.MessageSubscribe {
			payload, ok = `{"success":true}`, true
		}
		if !ok {
			return
		}
		conn.Reply(messageType, payload)
	}
}

// Echo answers every request with its own payload under the same type,
// which lets tests tag requests and check which reply they got.
func Echo(conn *ServerConn, request ipc.Frame) {
	conn.WriteFrame(ipc.Frame{Type: request.Type, Payload: request.Payload})
}
