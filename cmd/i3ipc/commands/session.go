// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/i3ipc/cmd/i3ipc/cli"
	"github.com/bureau-foundation/i3ipc/ipc"
	"github.com/bureau-foundation/i3ipc/lib/config"
)

// windowManagerBinary is asked for its socket path when neither a
// flag, the config, nor I3SOCK names one.
const windowManagerBinary = "i3"

// Streams are where commands write.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// StandardStreams returns the process's stdout and stderr.
func StandardStreams() Streams {
	return Streams{Stdout: os.Stdout, Stderr: os.Stderr}
}

// globalFlags are accepted by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func (f *globalFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file, YAML or JSONC (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&f.logLevel, "log-level", "", "debug, info, warn, or error (default: config log_level)")
}

// connectionFlags are accepted by every command that talks to the
// window manager.
type connectionFlags struct {
	globalFlags
	socketPath string
	timeout    string
}

func (f *connectionFlags) register(flagSet *pflag.FlagSet) {
	f.globalFlags.register(flagSet)
	flagSet.StringVarP(&f.socketPath, "socket", "s", "", "IPC socket path (default: config socket_path, $I3SOCK, or i3 --get-socketpath)")
	flagSet.StringVar(&f.timeout, "timeout", "", "per-request timeout such as 2s, 0 to wait forever (default: config request_timeout)")
}

// session is the loaded configuration and logger for one command run.
type session struct {
	streams Streams
	config  *config.Config
	logger  *slog.Logger
}

// load reads the config file, applies flag overrides, and builds the
// logger.
func (f *globalFlags) load(streams Streams, command string) (*session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return newSession(streams, cfg, command)
}

func (f *connectionFlags) load(streams Streams, command string) (*session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.timeout != "" {
		cfg.RequestTimeout = f.timeout
	}
	if f.socketPath != "" {
		cfg.SocketPath = f.socketPath
	}
	return newSession(streams, cfg, command)
}

func newSession(streams Streams, cfg *config.Config, command string) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration: %w", err)
	}
	level, err := cli.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return &session{
		streams: streams,
		config:  cfg,
		logger:  cli.NewCommandLogger(streams.Stderr, level).With("command", command),
	}, nil
}

func (f *globalFlags) loadConfig() (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = os.Getenv(config.EnvironmentVariable)
	}
	if path == "" {
		cfg := config.Default()
		cfg.ExpandVariables()
		return cfg, nil
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NotFound("config file %s does not exist", path)
		}
		return nil, cli.Validation("loading config: %w", err)
	}
	return cfg, nil
}

// socketPath returns the configured socket, asking the window manager
// binary when none is configured.
func (s *session) socketPath(ctx context.Context) (string, error) {
	if s.config.SocketPath != "" {
		return s.config.SocketPath, nil
	}
	path, err := config.DiscoverSocketPath(ctx, windowManagerBinary)
	if err != nil {
		return "", cli.NotFound("cannot find the i3 IPC socket: %w", err).
			WithHint("Set I3SOCK, pass --socket, or set socket_path in the config file.")
	}
	s.logger.Debug("discovered socket path", "socket", path)
	return path, nil
}

// dial connects with the session's timeout, event buffer, and logger,
// followed by any extra options.
func (s *session) dial(ctx context.Context, options ...ipc.Option) (*ipc.Conn, error) {
	socketPath, err := s.socketPath(ctx)
	if err != nil {
		return nil, err
	}
	all := append([]ipc.Option{
		ipc.WithLogger(s.logger),
		ipc.WithRequestTimeout(s.config.RequestTimeoutDuration()),
		ipc.WithEventBuffer(s.config.EventBuffer),
	}, options...)

	conn, err := ipc.Dial(ctx, socketPath, all...)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, cli.NotFound("%w", err).
				WithHint("Is i3 running? The socket path may be stale; check $I3SOCK.")
		}
		if errors.Is(err, syscall.EACCES) {
			return nil, cli.Validation("%w", err).
				WithHint("The socket is not accessible to this user: ls -la " + socketPath)
		}
		return nil, cli.Transient("%w", err)
	}
	return conn, nil
}
