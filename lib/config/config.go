// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file for Load.
const EnvironmentVariable = "I3IPC_CONFIG"

// Config is the configuration of the i3ipc command.
type Config struct {
	// SocketPath is the window manager's IPC socket.
	// Default: ${I3SOCK}
	SocketPath string `yaml:"socket_path" json:"socket_path"`

	// RequestTimeout bounds each request, as a Go duration string.
	// "0" waits until the reply or the connection closes.
	// Default: 10s
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`

	// EventBuffer is how many events may wait for delivery before new
	// ones are dropped.
	// Default: 256
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`

	// LogLevel is one of debug, info, warn, error.
	// Default: warn
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Capture configures "i3ipc record".
	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

// CaptureConfig configures traffic capture.
type CaptureConfig struct {
	// Directory is where "i3ipc record" writes captures given as a
	// bare file name.
	// Default: ${XDG_STATE_HOME:-${HOME}/.local/state}/i3ipc
	Directory string `yaml:"directory" json:"directory"`

	// Compression is none, zstd, or lz4.
	// Default: zstd
	Compression string `yaml:"compression" json:"compression"`

	// Recipients are age public keys. When set, captures are encrypted.
	Recipients []string `yaml:"recipients" json:"recipients"`

	// Identity is the age identity file used by "i3ipc replay" for
	// encrypted captures.
	Identity string `yaml:"identity" json:"identity"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		SocketPath:     "${I3SOCK}",
		RequestTimeout: "10s",
		EventBuffer:    256,
		LogLevel:       "warn",
		Capture: CaptureConfig{
			Directory:   "${XDG_STATE_HOME:-${HOME}/.local/state}/i3ipc",
			Compression: "zstd",
		},
	}
}

// Load loads configuration from the file named by I3IPC_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your i3ipc config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Values
// absent from the file keep their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.ExpandVariables()

	return cfg, nil
}

// loadFile merges a single configuration file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// ExpandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. LoadFile calls it; callers that build a Config from Default
// call it themselves.
func (c *Config) ExpandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.SocketPath = expandVars(c.SocketPath, vars)
	c.Capture.Directory = expandVars(c.Capture.Directory, vars)
	c.Capture.Identity = expandVars(c.Capture.Identity, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}. The default may itself
// hold one ${VAR}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-((?:[^}$]|\$\{[^}]*\})*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		if strings.Contains(defaultValue, "${") {
			return expandVars(defaultValue, vars)
		}
		return defaultValue
	})
}

// RequestTimeoutDuration parses RequestTimeout. Call Validate first.
func (c *Config) RequestTimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.RequestTimeout)
	return duration
}

var logLevels = []string{"debug", "info", "warn", "error"}

var compressions = []string{"none", "zstd", "lz4"}

// Validate checks the configuration for errors. The socket path is not
// checked: it may come from a flag or from DiscoverSocketPath.
func (c *Config) Validate() error {
	var errs []error

	if duration, err := time.ParseDuration(c.RequestTimeout); err != nil {
		errs = append(errs, fmt.Errorf("request_timeout: %w", err))
	} else if duration < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout))
	}

	if c.EventBuffer <= 0 {
		errs = append(errs, fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer))
	}

	if !contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", logLevels))
	}

	if !contains(compressions, c.Capture.Compression) {
		errs = append(errs, fmt.Errorf("capture.compression must be one of: %v", compressions))
	}

	for _, recipient := range c.Capture.Recipients {
		if !strings.HasPrefix(recipient, "age1") {
			errs = append(errs, fmt.Errorf("capture.recipients: %q is not an age public key", recipient))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// CapturePath resolves a capture file name against Capture.Directory.
// Names containing a path separator are used as given.
func (c *Config) CapturePath(name string) string {
	if strings.ContainsRune(name, filepath.Separator) || c.Capture.Directory == "" {
		return name
	}
	return filepath.Join(c.Capture.Directory, name)
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// DiscoverSocketPath asks the window manager for its socket path by
// running "<binary> --get-socketpath". It looks for binary in PATH.
func DiscoverSocketPath(ctx context.Context, binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", binary)
	}

	output, err := exec.CommandContext(ctx, path, "--get-socketpath").Output()
	if err != nil {
		return "", fmt.Errorf("running %s --get-socketpath: %w", binary, err)
	}
	socketPath := strings.TrimSpace(string(output))
	if socketPath == "" {
		return "", fmt.Errorf("%s --get-socketpath printed nothing", binary)
	}
	return socketPath, nil
}
