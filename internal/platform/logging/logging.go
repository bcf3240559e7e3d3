// Package logging builds the zerolog loggers used across the gateway.
//
// Stdout carries the MCP stdio transport, so every logger writes to stderr
// unless a test supplies its own writer.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format string

const (
	// FormatJSON renders one JSON object per line.
	FormatJSON Format = "json"
	// FormatConsole renders human readable lines.
	FormatConsole Format = "console"
	// FormatAuto picks console on a terminal and JSON otherwise.
	FormatAuto Format = "auto"
)

// Config controls logger construction.
type Config struct {
	Level  string
	Format Format
	Debug  bool

	// Output overrides stderr.
	Output io.Writer
}

// New builds a logger from cfg.
func New(cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", raw, err)
		}
		level = parsed
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	switch resolveFormat(cfg.Format, out) {
	case FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func resolveFormat(format Format, out io.Writer) Format {
	switch Format(strings.ToLower(strings.TrimSpace(string(format)))) {
	case "", FormatAuto:
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return FormatConsole
		}
		return FormatJSON
	case FormatJSON:
		return FormatJSON
	case FormatConsole:
		return FormatConsole
	default:
		return format
	}
}

// WithComponent tags every line from logger with a component name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
