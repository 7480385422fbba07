// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package logger builds the structured zerolog loggers used by buddy.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // auto, json, console
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a configured level name to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", s)
	}
}

// ValidFormat reports whether f is a supported format name.
func ValidFormat(f string) bool {
	switch strings.ToLower(f) {
	case "", FormatAuto, FormatJSON, FormatConsole:
		return true
	}
	return false
}

// New creates the root logger. Every line carries service=buddy.
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if !ValidFormat(cfg.Format) {
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (supported: auto, json, console)", cfg.Format)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if useConsole(cfg.Format, output) {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "buddy").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return zlog, nil
}

// useConsole picks the human-readable writer for "console", and for "auto"
// when the output is a terminal.
func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Component returns a sub-logger tagged with component.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// LogRequest logs one completed HTTP request.
func LogRequest(l zerolog.Logger, method, path string, status int, duration time.Duration, requestID string) {
	event := l.Info()
	switch {
	case status >= 500:
		event = l.Error()
	case status >= 400:
		event = l.Warn()
	}
	event.
		Str("event", "http.request").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration).
		Str("request_id", requestID).
		Msg("request completed")
}

// LogServerStart logs server startup.
func LogServerStart(l zerolog.Logger, addr, provider, model string) {
	l.Info().
		Str("event", "server.start").
		Str("addr", addr).
		Str("provider", provider).
		Str("model", model).
		Msg("buddy server starting")
}

// LogServerShutdown logs server shutdown.
func LogServerShutdown(l zerolog.Logger, reason string) {
	l.Info().
		Str("event", "server.shutdown").
		Str("reason", reason).
		Msg("buddy server shutting down")
}
