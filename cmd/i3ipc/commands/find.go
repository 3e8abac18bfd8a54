// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/lib/treeview"
)

// findResult is the --json form of a match.
type findResult struct {
	ID    ipc.NodeID `json:"id"`
	Score int        `json:"score"`
	Label string     `json:"label"`
}

func findCommand(streams Streams) *cli.Command {
	var (
		connection connectionFlags
		output     outputFlags
		limit      int
		focus      bool
	)

	return &cli.Command{
		Name:    "find",
		Summary: "Fuzzy-search containers in the layout tree",
		Description: `Fuzzy-match the pattern against every container's label (the
line "i3ipc tree" prints for it) and list the matches, best first.

Matching is case-insensitive unless the pattern has an upper-case
letter. With --focus the best match is focused. Exits with status 69
when nothing matches.`,
		Usage: "i3ipc find [flags] <pattern>",
		Examples: []cli.Example{
			{Description: "Find terminal windows", Command: "i3ipc find class=term"},
			{Description: "Focus the best match for firefox", Command: "i3ipc find --focus firefox"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("find", pflag.ContinueOnError)
			connection.register(flagSet)
			output.register(flagSet, "print matches as JSON")
			flagSet.IntVarP(&limit, "limit", "n", 10, "print at most this many matches, 0 for all")
			flagSet.BoolVar(&focus, "focus", false, "focus the best match")
			return flagSet
		},
		Run: func(args []string) error {
			pattern := strings.Join(args, " ")
			if pattern == "" {
				return cli.Validation("usage: i3ipc find [flags] <pattern>")
			}
			out, err := output.printer(streams.Stdout)
			if err != nil {
				return err
			}
			s, err := connection.load(streams, "find")
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			conn, err := s.dial(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			root, err := conn.Tree(ctx)
			if err != nil {
				return cli.Classify(fmt.Errorf("get_tree: %w", err))
			}

			matches := treeview.Search(root, pattern)
			if len(matches) == 0 {
				return cli.NotFound("no container matches %q", pattern)
			}
			if limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}

			if err := printMatches(out, matches, output.json); err != nil {
				return err
			}

			if !focus {
				return nil
			}
			best := matches[0].Node
			s.logger.Info("focusing container", "id", best.ID, "name", best.Name)
			reply, err := conn.Command(ctx, fmt.Sprintf("[con_id=%d] focus", best.ID))
			var commandErr *ipc.CommandError
			if errors.As(err, &commandErr) {
				return s.checkReply(reply)
			}
			if err != nil {
				return cli.Classify(fmt.Errorf("command: %w", err))
			}
			return nil
		},
	}
}

func printMatches(out *printer, matches []treeview.Match, asJSON bool) error {
	if asJSON {
		results := make([]findResult, len(matches))
		for index, match := range matches {
			results[index] = findResult{ID: match.Node.ID, Score: match.Score, Label: match.Label}
		}
		return out.printValue(results)
	}

	renderer := out.renderer()
	for _, match := range matches {
		label := match.Label
		if renderer != nil {
			label = treeview.Highlight(label, match.Positions, highlightMatch(renderer))
		}
		if _, err := fmt.Fprintf(out.w, "%5d  %s\n", match.Score, label); err != nil {
			return err
		}
	}
	return nil
}

func highlightMatch(renderer *lipgloss.Renderer) lipgloss.Style {
	return renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
}
