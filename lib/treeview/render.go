// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeview

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/i3ipc/ipc"
)

// Options controls Render.
type Options struct {
	// Width truncates each label to this many cells, connectors
	// excluded. Zero disables truncation.
	Width int

	// Renderer styles the output. Nil renders plain text.
	Renderer *lipgloss.Renderer
}

// styles are the per-kind label styles. All are zero-valued when
// rendering plain text.
type styles struct {
	enumerator lipgloss.Style
	workspace  lipgloss.Style
	focused    lipgloss.Style
	floating   lipgloss.Style
	plain      lipgloss.Style
}

func newStyles(renderer *lipgloss.Renderer) styles {
	if renderer == nil {
		return styles{}
	}
	return styles{
		enumerator: renderer.NewStyle().Foreground(lipgloss.Color("240")),
		workspace:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		focused:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		floating:   renderer.NewStyle().Italic(true).Foreground(lipgloss.Color("146")),
		plain:      renderer.NewStyle(),
	}
}

// Render draws the subtree rooted at root, tiling children first and
// floating children after them.
func Render(root *ipc.Node, options Options) string {
	if root == nil {
		return ""
	}
	s := newStyles(options.Renderer)
	return build(root, false, options, s).String()
}

func build(node *ipc.Node, floating bool, options Options, s styles) *tree.Tree {
	label := Label(node)
	if floating {
		label = "~ " + label
	}
	if options.Width > 0 {
		label = ansi.Truncate(label, options.Width, "…")
	}

	style := s.plain
	switch {
	case node.Focused:
		style = s.focused
	case node.Type == ipc.NodeWorkspace:
		style = s.workspace
	case floating:
		style = s.floating
	}

	branch := tree.Root(style.Render(label)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(s.enumerator)
	for _, child := range node.Nodes {
		branch.Child(build(child, false, options, s))
	}
	for _, child := range node.FloatingNodes {
		branch.Child(build(child, true, options, s))
	}
	return branch
}
