// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeview

import (
	"fmt"
	"strings"

	"github.com/bureau-foundation/i3ipc/ipc"
)

// Label is the one-line description of a container used by both
// Render and Search: type, id, quoted name, then the attributes that
// distinguish it.
func Label(node *ipc.Node) string {
	var builder strings.Builder
	nodeType := node.Type
	if nodeType == "" {
		nodeType = ipc.NodeCon
	}
	fmt.Fprintf(&builder, "%s %s", nodeType, node.ID)
	if node.Name != "" {
		fmt.Fprintf(&builder, " %q", node.Name)
	}
	if node.WindowProperties != nil && node.WindowProperties.Class != "" {
		fmt.Fprintf(&builder, " class=%s", node.WindowProperties.Class)
	}
	if node.Layout != "" && !node.IsLeaf() {
		fmt.Fprintf(&builder, " [%s]", node.Layout)
	}
	for _, mark := range node.Marks {
		fmt.Fprintf(&builder, " mark=%s", mark)
	}
	if node.Focused {
		builder.WriteString(" *focused*")
	}
	if node.Urgent {
		builder.WriteString(" !urgent!")
	}
	return builder.String()
}
