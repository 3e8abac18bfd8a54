// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/json"
	"errors"
	"iter"
	"strconv"
)

// NodeID identifies a container. The window manager derives it from
// an internal pointer; treat it as an opaque handle that is only
// meaningful while the container exists.
type NodeID uint64

func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// NodeType is the kind of a container.
type NodeType string

// Container kinds.
const (
	NodeRoot        NodeType = "root"
	NodeOutput      NodeType = "output"
	NodeCon         NodeType = "con"
	NodeFloatingCon NodeType = "floating_con"
	NodeWorkspace   NodeType = "workspace"
	NodeDockArea    NodeType = "dockarea"
)

// Layout is how a container arranges its children.
type Layout string

// Layouts.
const (
	LayoutSplitH   Layout = "splith"
	LayoutSplitV   Layout = "splitv"
	LayoutStacked  Layout = "stacked"
	LayoutTabbed   Layout = "tabbed"
	LayoutDockArea Layout = "dockarea"
	LayoutOutput   Layout = "output"
)

// WindowProperties are the X11 properties of a window.
type WindowProperties struct {
	Class    string `json:"class,omitempty"`
	Instance string `json:"instance,omitempty"`
	Title    string `json:"title,omitempty"`
	Role     string `json:"window_role,omitempty"`
}

// Node is a container in the layout tree.
type Node struct {
	ID     NodeID   `json:"id"`
	Name   string   `json:"name"`
	Type   NodeType `json:"type"`
	Border string   `json:"border"`
	Layout Layout   `json:"layout"`

	// Orientation is deprecated in favour of Layout but still sent.
	Orientation string `json:"orientation"`

	// Percent is the share of the parent this container takes, nil
	// when the window manager reports none.
	Percent *float64 `json:"percent"`

	Rect       Rect `json:"rect"`
	WindowRect Rect `json:"window_rect"`
	DecoRect   Rect `json:"deco_rect"`
	Geometry   Rect `json:"geometry"`

	// Window is the X11 window id, nil for containers without a window.
	Window *int64 `json:"window"`

	WindowProperties *WindowProperties `json:"window_properties,omitempty"`

	Urgent  bool `json:"urgent"`
	Focused bool `json:"focused"`

	// Focus lists child ids, most recently focused first.
	Focus []NodeID `json:"focus,omitempty"`

	Marks          []string `json:"marks,omitempty"`
	FullscreenMode int      `json:"fullscreen_mode"`
	Sticky         bool     `json:"sticky"`

	// Nodes are the tiling children in document order.
	Nodes []*Node `json:"nodes"`

	// FloatingNodes are the floating children in document order.
	FloatingNodes []*Node `json:"floating_nodes"`
}

// BuildTree decodes a GET_TREE payload (or any serialized container)
// into a Node hierarchy.
func BuildTree(payload []byte) (*Node, error) {
	var root *Node
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, &MalformedPayloadError{Type: uint32(MessageGetTree), Err: err}
	}
	if root == nil {
		return nil, &MalformedPayloadError{Type: uint32(MessageGetTree), Err: errors.New("tree is null")}
	}
	return root, nil
}

// All returns a depth-first traversal of the subtree rooted at n: a
// node before its children, tiling children before floating children.
// The sequence is lazy and may be ranged over any number of times.
func (n *Node) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(yield)
	}
}

func (n *Node) walk(yield func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !yield(n) {
		return false
	}
	for _, child := range n.Nodes {
		if !child.walk(yield) {
			return false
		}
	}
	for _, child := range n.FloatingNodes {
		if !child.walk(yield) {
			return false
		}
	}
	return true
}

// Find returns the first node in traversal order for which match
// returns true, or nil.
func (n *Node) Find(match func(*Node) bool) *Node {
	for node := range n.All() {
		if match(node) {
			return node
		}
	}
	return nil
}

// FindByID returns the node with the given id, or nil.
func (n *Node) FindByID(id NodeID) *Node {
	return n.Find(func(node *Node) bool { return node.ID == id })
}

// FindFocused returns the focused container, or nil.
func (n *Node) FindFocused() *Node {
	return n.Find(func(node *Node) bool { return node.Focused })
}

// Workspaces returns the workspace containers in traversal order.
func (n *Node) Workspaces() []*Node {
	var workspaces []*Node
	for node := range n.All() {
		if node.Type == NodeWorkspace {
			workspaces = append(workspaces, node)
		}
	}
	return workspaces
}

// IsLeaf reports whether n has no children of either kind.
func (n *Node) IsLeaf() bool {
	return len(n.Nodes) == 0 && len(n.FloatingNodes) == 0
}
