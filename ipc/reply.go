// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "encoding/json"

// Reply is a decoded reply payload. The concrete type is selected by
// the reply's MessageType; see DecodeReply.
type Reply interface {
	ReplyType() MessageType
}

// Rect is a rectangle in pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CommandResult is the outcome of one command in a COMMAND payload.
// A payload of several commands separated by ';' or ',' yields one
// result per command.
type CommandResult struct {
	Success bool `json:"success"`

	// Error is the reason for failure. Empty when Success is true.
	Error string `json:"error,omitempty"`

	// ParseError is set when the command did not parse at all.
	ParseError bool `json:"parse_error,omitempty"`
}

// CommandReply is the reply to MessageCommand.
type CommandReply []CommandResult

func (CommandReply) ReplyType() MessageType { return MessageCommand }

// Err returns a *CommandError if any command failed, nil otherwise.
func (r CommandReply) Err() error {
	for _, result := range r {
		if !result.Success {
			return &CommandError{Results: r}
		}
	}
	return nil
}

// Workspace is one entry of the GET_WORKSPACES reply.
type Workspace struct {
	ID NodeID `json:"id"`

	// Num is the workspace number, or -1 for named workspaces that do
	// not start with a number.
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Focused bool   `json:"focused"`
	Urgent  bool   `json:"urgent"`
	Rect    Rect   `json:"rect"`
	Output  string `json:"output"`
}

// WorkspacesReply is the reply to MessageGetWorkspaces.
type WorkspacesReply []Workspace

func (WorkspacesReply) ReplyType() MessageType { return MessageGetWorkspaces }

// SubscribeReply is the reply to MessageSubscribe.
type SubscribeReply struct {
	Success bool `json:"success"`
}

func (SubscribeReply) ReplyType() MessageType { return MessageSubscribe }

// Output is one entry of the GET_OUTPUTS reply.
type Output struct {
	Name    string `json:"name"`
	Active  bool   `json:"active"`
	Primary bool   `json:"primary"`

	// CurrentWorkspace is nil for inactive outputs.
	CurrentWorkspace *string `json:"current_workspace"`
	Rect             Rect    `json:"rect"`
}

// OutputsReply is the reply to MessageGetOutputs.
type OutputsReply []Output

func (OutputsReply) ReplyType() MessageType { return MessageGetOutputs }

// TreeReply is the reply to MessageGetTree.
type TreeReply struct {
	Root *Node
}

func (TreeReply) ReplyType() MessageType { return MessageGetTree }

// MarksReply is the reply to MessageGetMarks. Never nil after
// decoding; empty when no container is marked.
type MarksReply []string

func (MarksReply) ReplyType() MessageType { return MessageGetMarks }

// BarIDsReply is the reply to MessageGetBarConfig with an empty
// payload: the ids of all configured bars.
type BarIDsReply []string

func (BarIDsReply) ReplyType() MessageType { return MessageGetBarConfig }

// BarConfig is the configuration of one bar block.
type BarConfig struct {
	ID                    string            `json:"id"`
	Mode                  string            `json:"mode"`
	HiddenState           string            `json:"hidden_state,omitempty"`
	Position              string            `json:"position"`
	StatusCommand         string            `json:"status_command"`
	Font                  string            `json:"font"`
	WorkspaceButtons      bool              `json:"workspace_buttons"`
	WorkspaceMinWidth     int               `json:"workspace_min_width,omitempty"`
	BindingModeIndicator  bool              `json:"binding_mode_indicator"`
	Verbose               bool              `json:"verbose"`
	StripWorkspaceNumbers bool              `json:"strip_workspace_numbers,omitempty"`
	StripWorkspaceName    bool              `json:"strip_workspace_name,omitempty"`
	TrayOutput            string            `json:"tray_output,omitempty"`
	SeparatorSymbol       string            `json:"separator_symbol,omitempty"`
	Outputs               []string          `json:"outputs,omitempty"`
	Colors                map[string]string `json:"colors"`
}

// BarConfigReply is the reply to MessageGetBarConfig with a bar id
// as payload.
type BarConfigReply struct {
	BarConfig
}

func (BarConfigReply) ReplyType() MessageType { return MessageGetBarConfig }

// Version describes the running window manager.
type Version struct {
	Major         int    `json:"major"`
	Minor         int    `json:"minor"`
	Patch         int    `json:"patch"`
	HumanReadable string `json:"human_readable"`

	// LoadedConfigFileName is absent on old versions.
	LoadedConfigFileName string `json:"loaded_config_file_name,omitempty"`
}

// VersionReply is the reply to MessageGetVersion.
type VersionReply struct {
	Version
}

func (VersionReply) ReplyType() MessageType { return MessageGetVersion }

// UnknownReply carries the payload of a reply type this package does
// not model.
type UnknownReply struct {
	Type MessageType
	Raw  json.RawMessage
}

func (r UnknownReply) ReplyType() MessageType { return r.Type }
