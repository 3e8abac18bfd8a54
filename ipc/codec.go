// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeCommand returns the payload of a COMMAND request. The text is
// sent as UTF-8; the frame length is its byte length.
func EncodeCommand(text string) []byte {
	return []byte(text)
}

// EncodeSubscribe returns the payload of a SUBSCRIBE request: a JSON
// array of event names.
func EncodeSubscribe(names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	payload, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encoding subscribe payload: %w", err)
	}
	return payload, nil
}

// DecodeReply decodes a reply payload into the variant for
// messageType. Unknown types yield UnknownReply. Invalid JSON yields a
// *MalformedPayloadError.
//
// GET_BAR_CONFIG has two reply shapes. A JSON array is the list of bar
// ids, an object is one bar's configuration; the first JSON token
// decides.
func DecodeReply(messageType MessageType, payload []byte) (Reply, error) {
	switch messageType {
	case MessageCommand:
		return decodeReply[CommandReply](messageType, payload)
	case MessageGetWorkspaces:
		return decodeReply[WorkspacesReply](messageType, payload)
	case MessageSubscribe:
		return decodeReply[SubscribeReply](messageType, payload)
	case MessageGetOutputs:
		return decodeReply[OutputsReply](messageType, payload)
	case MessageGetTree:
		root, err := BuildTree(payload)
		if err != nil {
			return nil, err
		}
		return TreeReply{Root: root}, nil
	case MessageGetMarks:
		var marks MarksReply
		if err := decodeJSON(uint32(messageType), payload, &marks); err != nil {
			return nil, err
		}
		if marks == nil {
			marks = MarksReply{}
		}
		return marks, nil
	case MessageGetBarConfig:
		switch firstToken(payload) {
		case '[':
			return decodeReply[BarIDsReply](messageType, payload)
		case '{':
			return decodeReply[BarConfigReply](messageType, payload)
		default:
			return nil, &MalformedPayloadError{
				Type: uint32(messageType),
				Err:  errors.New("bar config reply is neither an array nor an object"),
			}
		}
	case MessageGetVersion:
		return decodeReply[VersionReply](messageType, payload)
	default:
		raw, err := rawJSON(uint32(messageType), payload)
		if err != nil {
			return nil, err
		}
		return UnknownReply{Type: messageType, Raw: raw}, nil
	}
}

// DecodeEvent decodes an event payload into the variant for code.
// Unknown codes yield UnknownEvent. Invalid JSON yields a
// *MalformedPayloadError.
func DecodeEvent(code EventCode, payload []byte) (Event, error) {
	switch code {
	case EventWorkspace:
		return decodeEvent[WorkspaceEvent](code, payload)
	case EventOutput:
		return decodeEvent[OutputEvent](code, payload)
	case EventMode:
		return decodeEvent[ModeEvent](code, payload)
	case EventWindow:
		return decodeEvent[WindowEvent](code, payload)
	case EventBarConfigUpdate:
		return decodeEvent[BarConfigUpdateEvent](code, payload)
	case EventBinding:
		return decodeEvent[BindingEvent](code, payload)
	default:
		raw, err := rawJSON(code.FrameType(), payload)
		if err != nil {
			return nil, err
		}
		return UnknownEvent{Code: code, Raw: raw}, nil
	}
}

func decodeReply[R Reply](messageType MessageType, payload []byte) (Reply, error) {
	var reply R
	if err := decodeJSON(uint32(messageType), payload, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func decodeEvent[E Event](code EventCode, payload []byte) (Event, error) {
	var event E
	if err := decodeJSON(code.FrameType(), payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}

func decodeJSON(frameType uint32, payload []byte, target any) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return &MalformedPayloadError{Type: frameType, Err: err}
	}
	return nil
}

func rawJSON(frameType uint32, payload []byte) (json.RawMessage, error) {
	if !json.Valid(payload) {
		return nil, &MalformedPayloadError{Type: frameType, Err: errors.New("invalid JSON")}
	}
	return json.RawMessage(bytes.Clone(payload)), nil
}

// firstToken returns the first non-whitespace byte of payload, or 0.
func firstToken(payload []byte) byte {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
