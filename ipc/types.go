// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"sort"
)

// MessageType is the type code of a request and of its reply.
type MessageType uint32

// Request and reply type codes.
const (
	// MessageCommand runs the payload as window manager commands.
	MessageCommand MessageType = 0

	// MessageGetWorkspaces lists workspaces.
	MessageGetWorkspaces MessageType = 1

	// MessageSubscribe subscribes the connection to events. The
	// payload is a JSON array of event names.
	MessageSubscribe MessageType = 2

	// MessageGetOutputs lists outputs (monitors).
	MessageGetOutputs MessageType = 3

	// MessageGetTree returns the layout tree.
	MessageGetTree MessageType = 4

	// MessageGetMarks lists container marks.
	MessageGetMarks MessageType = 5

	// MessageGetBarConfig returns the bar ids (empty payload) or one
	// bar's configuration (payload is the id).
	MessageGetBarConfig MessageType = 6

	// MessageGetVersion returns the window manager version.
	MessageGetVersion MessageType = 7
)

var messageTypeNames = map[MessageType]string{
	MessageCommand:       "command",
	MessageGetWorkspaces: "get_workspaces",
	MessageSubscribe:     "subscribe",
	MessageGetOutputs:    "get_outputs",
	MessageGetTree:       "get_tree",
	MessageGetMarks:      "get_marks",
	MessageGetBarConfig:  "get_bar_config",
	MessageGetVersion:    "get_version",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message(%d)", uint32(t))
}

// ParseMessageType maps a name such as "get_tree" to its code.
func ParseMessageType(name string) (MessageType, error) {
	for messageType, known := range messageTypeNames {
		if known == name {
			return messageType, nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q (known: %v)", name, MessageTypeNames())
}

// MessageTypeNames returns the known message type names sorted by code.
func MessageTypeNames() []string {
	codes := make([]int, 0, len(messageTypeNames))
	for messageType := range messageTypeNames {
		codes = append(codes, int(messageType))
	}
	sort.Ints(codes)
	names := make([]string, len(codes))
	for index, code := range codes {
		names[index] = messageTypeNames[MessageType(code)]
	}
	return names
}

// EventCode identifies an event kind. On the wire the frame type is
// the code with bit 31 set.
type EventCode uint32

// Event codes.
const (
	EventWorkspace       EventCode = 0
	EventOutput          EventCode = 1
	EventMode            EventCode = 2
	EventWindow          EventCode = 3
	EventBarConfigUpdate EventCode = 4
	EventBinding         EventCode = 5
)

// eventFlag marks a frame type as an event.
const eventFlag uint32 = 1 << 31

var eventNames = map[EventCode]string{
	EventWorkspace:       "workspace",
	EventOutput:          "output",
	EventMode:            "mode",
	EventWindow:          "window",
	EventBarConfigUpdate: "barconfig_update",
	EventBinding:         "binding",
}

// String returns the name used in subscribe requests.
func (c EventCode) String() string {
	if name, ok := eventNames[c]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint32(c))
}

// FrameType returns the wire type of an event frame with this code.
func (c EventCode) FrameType() uint32 {
	return uint32(c) | eventFlag
}

// ParseEventCode maps a subscribe name such as "window" to its code.
func ParseEventCode(name string) (EventCode, error) {
	for code, known := range eventNames {
		if known == name {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", name)
}
