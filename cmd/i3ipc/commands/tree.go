// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/lib/treeview"
)

func treeCommand(streams Streams) *cli.Command {
	var (
		connection connectionFlags
		output     outputFlags
		width      int
	)

	return &cli.Command{
		Name:    "tree",
		Summary: "Print the layout tree",
		Description: `Fetch the layout tree and print it as an indented outline.

Each line shows the container type, id, name, window class, layout,
and marks. The focused container is starred and floating containers
are prefixed with "~".`,
		Usage: "i3ipc tree [flags]",
		Examples: []cli.Example{
			{Description: "Print the tree with labels cut to 80 columns", Command: "i3ipc tree --width 80"},
			{Description: "Print the raw reply", Command: "i3ipc tree --json"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tree", pflag.ContinueOnError)
			connection.register(flagSet)
			output.register(flagSet, "print the tree as JSON instead of an outline")
			flagSet.IntVar(&width, "width", -1, "truncate labels to this many columns, 0 for no limit (default: terminal width)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return cli.Validation("tree takes no arguments, got %q", args)
			}
			out, err := output.printer(streams.Stdout)
			if err != nil {
				return err
			}
			s, err := connection.load(streams, "tree")
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

			if output.json {
				return out.printValue(root)
			}
			if width < 0 {
				width = terminalWidth(streams.Stdout)
			}
			return out.println(treeview.Render(root, treeview.Options{
				Width:    width,
				Renderer: out.renderer(),
			}))
		},
	}
}
