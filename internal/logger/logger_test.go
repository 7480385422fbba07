// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
		err  bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"verbose", zerolog.NoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	hl := Component(l, "http")
	hl.Info().Str("event", "server.start").Msg("hello")
	l.Debug().Msg("filtered")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "buddy", entry["service"])
	assert.Equal(t, "http", entry["component"])
	assert.Equal(t, "server.start", entry["event"])
	assert.Equal(t, "hello", entry["message"])
}

func TestNew_AutoFormatOnBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatAuto, Output: &buf})
	require.NoError(t, err)

	l.Info().Msg("x")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatConsole, Output: &buf})
	require.NoError(t, err)

	l.Info().Msg("readable")
	assert.Contains(t, buf.String(), "readable")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestLogRequest_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	LogRequest(l, "POST", "/chat", 200, 5*time.Millisecond, "req-1")
	LogRequest(l, "POST", "/chat", 400, time.Millisecond, "req-2")
	LogRequest(l, "POST", "/chat", 500, time.Millisecond, "req-3")

	var levels []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		levels = append(levels, entry["level"].(string))
		assert.Equal(t, "http.request", entry["event"])
	}
	assert.Equal(t, []string{"info", "warn", "error"}, levels)
}

func TestLogServerLifecycle(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: FormatJSON, Output: &buf})
	require.NoError(t, err)

	LogServerStart(l, ":8000", "groq", "llama-3.1-8b-instruct")
	LogServerShutdown(l, "interrupt")

	out := buf.String()
	assert.Contains(t, out, `"event":"server.start"`)
	assert.Contains(t, out, `"provider":"groq"`)
	assert.Contains(t, out, `"event":"server.shutdown"`)
}
