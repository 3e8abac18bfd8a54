// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "encoding/json"

// Event is a decoded event payload. The concrete type is selected by
// the event code; see DecodeEvent.
type Event interface {
	EventCode() EventCode
}

// WorkspaceEvent reports a workspace change: "focus", "init",
// "empty", "urgent", "rename", "reload", "restored", or "move".
type WorkspaceEvent struct {
	Change string `json:"change"`

	// Current is the affected workspace. Nil for "reload".
	Current *Node `json:"current"`

	// Old is the previously focused workspace for "focus". May be nil.
	Old *Node `json:"old"`
}

func (WorkspaceEvent) EventCode() EventCode { return EventWorkspace }

// OutputEvent reports that outputs were added, removed, or changed.
// Change is currently always "unspecified".
type OutputEvent struct {
	Change string `json:"change"`
}

func (OutputEvent) EventCode() EventCode { return EventOutput }

// ModeEvent reports a binding mode change. Change is the new mode.
type ModeEvent struct {
	Change      string `json:"change"`
	PangoMarkup bool   `json:"pango_markup"`
}

func (ModeEvent) EventCode() EventCode { return EventMode }

// WindowEvent reports a change to a window: "new", "close", "focus",
// "title", "fullscreen_mode", "move", "floating", "urgent", or "mark".
type WindowEvent struct {
	Change string `json:"change"`

	// Container is the window's parent container.
	Container *Node `json:"container"`
}

func (WindowEvent) EventCode() EventCode { return EventWindow }

// BarConfigUpdateEvent carries a bar's new configuration.
type BarConfigUpdateEvent struct {
	BarConfig
}

func (BarConfigUpdateEvent) EventCode() EventCode { return EventBarConfigUpdate }

// Binding describes a key or mouse binding that was triggered.
type Binding struct {
	Command        string   `json:"command"`
	EventStateMask []string `json:"event_state_mask"`
	InputCode      int      `json:"input_code"`

	// Symbol is the keysym, nil for bindings by keycode.
	Symbol    *string `json:"symbol"`
	InputType string  `json:"input_type"`
}

// BindingEvent reports that a binding ran. Change is "run".
type BindingEvent struct {
	Change  string  `json:"change"`
	Binding Binding `json:"binding"`
}

func (BindingEvent) EventCode() EventCode { return EventBinding }

// UnknownEvent carries the payload of an event code this package does
// not model.
type UnknownEvent struct {
	Code EventCode
	Raw  json.RawMessage
}

func (e UnknownEvent) EventCode() EventCode { return e.Code }
