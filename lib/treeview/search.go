// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeview

import (
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/i3ipc/ipc"
)

var algoInitOnce sync.Once

// Match is one container whose label matched a search pattern.
type Match struct {
	Node  *ipc.Node
	Label string

	// Score is fzf's match score; higher is better.
	Score int

	// Positions are the rune indexes of Label that matched, ascending.
	Positions []int
}

// Search returns the containers under root whose label fuzzy-matches
// pattern, best first. Ties keep traversal order. Matching is case
// insensitive unless pattern contains an upper-case letter. An empty
// pattern matches nothing.
func Search(root *ipc.Node, pattern string) []Match {
	if pattern == "" || root == nil {
		return nil
	}
	algoInitOnce.Do(func() { algo.Init("default") })

	caseSensitive := strings.IndexFunc(pattern, unicode.IsUpper) >= 0
	patternRunes := []rune(pattern)
	if !caseSensitive {
		patternRunes = []rune(strings.ToLower(pattern))
	}

	slab := util.MakeSlab(100*1024, 2048)
	var matches []Match
	for node := range root.All() {
		label := Label(node)
		chars := util.ToChars([]byte(label))
		result, positions := algo.FuzzyMatchV2(caseSensitive, false, true, &chars, patternRunes, true, slab)
		if result.Score <= 0 {
			continue
		}
		match := Match{Node: node, Label: label, Score: result.Score}
		if positions != nil {
			match.Positions = slices.Clone(*positions)
			slices.Sort(match.Positions)
		}
		matches = append(matches, match)
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return b.Score - a.Score
	})
	return matches
}

// Highlight renders label with the runes at positions in style and
// the rest unstyled.
func Highlight(label string, positions []int, style lipgloss.Style) string {
	if len(positions) == 0 {
		return label
	}
	var builder strings.Builder
	next := 0
	for index, character := range []rune(label) {
		if next < len(positions) && positions[next] == index {
			builder.WriteString(style.Render(string(character)))
			next++
			continue
		}
		builder.WriteRune(character)
	}
	return builder.String()
}
