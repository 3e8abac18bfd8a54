// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"fmt"
)

// Query sends a request and decodes its reply with DecodeReply.
func (c *Conn) Query(ctx context.Context, messageType MessageType, payload []byte) (Reply, error) {
	response, err := c.Request(ctx, messageType, payload)
	if err != nil {
		return nil, err
	}
	return DecodeReply(messageType, response)
}

// query is Query with the reply asserted to the variant R.
func query[R Reply](ctx context.Context, c *Conn, messageType MessageType, payload []byte) (R, error) {
	var zero R
	reply, err := c.Query(ctx, messageType, payload)
	if err != nil {
		return zero, err
	}
	typed, ok := reply.(R)
	if !ok {
		return zero, &MalformedPayloadError{
			Type: uint32(messageType),
			Err:  fmt.Errorf("unexpected reply variant %T", reply),
		}
	}
	return typed, nil
}

// Command runs commands (for example "workspace 2; exec xterm") and
// returns one result per command. If any command failed, the reply is
// returned together with a *CommandError.
func (c *Conn) Command(ctx context.Context, commands string) (CommandReply, error) {
	reply, err := query[CommandReply](ctx, c, MessageCommand, EncodeCommand(commands))
	if err != nil {
		return nil, err
	}
	return reply, reply.Err()
}

// Workspaces lists the workspaces.
func (c *Conn) Workspaces(ctx context.Context) (WorkspacesReply, error) {
	return query[WorkspacesReply](ctx, c, MessageGetWorkspaces, nil)
}

// Outputs lists the outputs.
func (c *Conn) Outputs(ctx context.Context) (OutputsReply, error) {
	return query[OutputsReply](ctx, c, MessageGetOutputs, nil)
}

// Tree returns the root of the layout tree.
func (c *Conn) Tree(ctx context.Context) (*Node, error) {
	reply, err := query[TreeReply](ctx, c, MessageGetTree, nil)
	if err != nil {
		return nil, err
	}
	return reply.Root, nil
}

// Marks lists all container marks.
func (c *Conn) Marks(ctx context.Context) (MarksReply, error) {
	return query[MarksReply](ctx, c, MessageGetMarks, nil)
}

// BarIDs lists the ids of configured bars.
func (c *Conn) BarIDs(ctx context.Context) (BarIDsReply, error) {
	return query[BarIDsReply](ctx, c, MessageGetBarConfig, nil)
}

// BarConfig returns the configuration of the bar with the given id.
func (c *Conn) BarConfig(ctx context.Context, id string) (BarConfig, error) {
	reply, err := query[BarConfigReply](ctx, c, MessageGetBarConfig, []byte(id))
	if err != nil {
		return BarConfig{}, err
	}
	return reply.BarConfig, nil
}

// Version returns the window manager's version.
func (c *Conn) Version(ctx context.Context) (Version, error) {
	reply, err := query[VersionReply](ctx, c, MessageGetVersion, nil)
	if err != nil {
		return Version{}, err
	}
	return reply.Version, nil
}

// Subscribe asks the server to send events with the given codes on
// this connection. The protocol has no way to unsubscribe; removing
// every listener only stops local delivery.
func (c *Conn) Subscribe(ctx context.Context, codes ...EventCode) error {
	names := make([]string, len(codes))
	for index, code := range codes {
		names[index] = code.String()
	}
	payload, err := EncodeSubscribe(names)
	if err != nil {
		return err
	}
	reply, err := query[SubscribeReply](ctx, c, MessageSubscribe, payload)
	if err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("subscription to %v rejected", names)
	}
	return nil
}
