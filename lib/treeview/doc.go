// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package treeview renders layout trees for terminals and searches
// them by fuzzy label match.
//
// [Render] draws a tree with box-drawing connectors, one line per
// container, truncating labels to a width. [Search] ranks containers
// by how well their label matches a pattern, using fzf's matching
// algorithm, and reports the matched rune positions so callers can
// highlight them.
package treeview
