// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/ipc"
)

// highlightStyle is the chroma style for JSON output.
const highlightStyle = "monokai"

// outputFlags select the output format.
type outputFlags struct {
	color string
	json  bool
}

func (f *outputFlags) register(flagSet *pflag.FlagSet, jsonUsage string) {
	flagSet.StringVar(&f.color, "color", "auto", "colorize output: auto, always, or never")
	if jsonUsage != "" {
		flagSet.BoolVar(&f.json, "json", false, jsonUsage)
	}
}

// printer writes command output, colored according to the terminal's
// color profile.
type printer struct {
	w       io.Writer
	profile termenv.Profile
}

func (f *outputFlags) printer(w io.Writer) (*printer, error) {
	var profile termenv.Profile
	switch f.color {
	case "auto", "":
		profile = termenv.NewOutput(w).Profile
	case "always":
		profile = termenv.NewOutput(w).Profile
		if profile == termenv.Ascii {
			profile = termenv.ANSI256
		}
	case "never":
		profile = termenv.Ascii
	default:
		return nil, cli.Validation("--color must be auto, always, or never, got %q", f.color)
	}
	return &printer{w: w, profile: profile}, nil
}

func (p *printer) colored() bool {
	return p.profile != termenv.Ascii
}

// renderer returns a lipgloss renderer for the printer's profile, or
// nil for plain output.
func (p *printer) renderer() *lipgloss.Renderer {
	if !p.colored() {
		return nil
	}
	renderer := lipgloss.NewRenderer(p.w, termenv.WithProfile(p.profile))
	renderer.SetColorProfile(p.profile)
	return renderer
}

// formatter names the chroma formatter for the profile.
func (p *printer) formatter() string {
	switch p.profile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	default:
		return "terminal16"
	}
}

// printJSON writes payload indented, highlighted when colored. A
// payload that is not valid JSON is written as is.
func (p *printer) printJSON(payload []byte) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, payload, "", "  "); err != nil {
		return p.println(string(payload))
	}
	if !p.colored() {
		return p.println(indented.String())
	}
	if err := quick.Highlight(p.w, indented.String(), "json", p.formatter(), highlightStyle); err != nil {
		return fmt.Errorf("highlighting output: %w", err)
	}
	_, err := fmt.Fprintln(p.w)
	return err
}

// printValue marshals value and prints it with printJSON.
func (p *printer) printValue(value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return p.printJSON(data)
}

func (p *printer) println(text string) error {
	_, err := fmt.Fprintln(p.w, text)
	return err
}

// eventJSON returns the JSON form of a decoded event. Unmodeled events
// keep the server's payload.
func eventJSON(event ipc.Event) ([]byte, error) {
	if unknown, ok := event.(ipc.UnknownEvent); ok {
		return unknown.Raw, nil
	}
	return json.Marshal(event)
}

// terminalWidth returns the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(file.Fd()))
	if err != nil {
		return 0
	}
	return width
}
