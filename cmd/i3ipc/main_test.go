// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
)

func TestExitStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStderr string
	}{
		{"success", nil, 0, ""},
		{"command failed", &cli.ExitError{Code: 2}, 2, ""},
		{"wrapped exit", fmt.Errorf("run: %w", &cli.ExitError{Code: 3}), 3, ""},
		{"validation", cli.Validation("bad flag"), 64, "error: bad flag\n"},
		{"not found", cli.NotFound("no socket"), 69, "error: no socket\n"},
		{"plain", errors.New("boom"), 1, "error: boom\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var stderr strings.Builder
			if code := exitStatus(test.err, &stderr); code != test.wantCode {
				t.Errorf("exitStatus = %d, want %d", code, test.wantCode)
			}
			if stderr.String() != test.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), test.wantStderr)
			}
		})
	}
}
