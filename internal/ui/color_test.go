// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
)

// capture disables colors and redirects Out for the duration of the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	origColor, origOut := color.NoColor, Out
	t.Cleanup(func() {
		color.NoColor = origColor
		Out = origOut
	})
	color.NoColor = true
	var buf bytes.Buffer
	Out = &buf
	return &buf
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	color.NoColor = false
	InitColors(false)
	if color.NoColor {
		t.Errorf("InitColors(false) should leave colors enabled")
	}

	InitColors(true)
	if !color.NoColor {
		t.Errorf("InitColors(true) should disable colors")
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		name  string
		print func()
		want  string
	}{
		{"success", func() { Successf("Server healthy (%dms)", 12) }, "✓ Server healthy (12ms)\n"},
		{"warning", func() { Warningf("provider %q unknown", "bard") }, "⚠ provider \"bard\" unknown\n"},
		{"error", func() { Errorf("no credential for %s", "groq") }, "✗ no credential for groq\n"},
		{"info", func() { Infof("using %s", "openrouter") }, "ℹ using openrouter\n"},
		{"header", func() { Header("Buddy") }, "Buddy\n=====\n"},
		{"field", func() { Field("Provider", "groq") }, "  Provider: groq\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t)
			tt.print()
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInlineHelpers(t *testing.T) {
	capture(t)

	if got := Label("Model:"); got != "Model:" {
		t.Errorf("Label() = %q", got)
	}
	if got := DimText(".buddy/config.yaml"); got != ".buddy/config.yaml" {
		t.Errorf("DimText() = %q", got)
	}
	if Label("") != "" || DimText("") != "" {
		t.Errorf("empty input should produce empty output")
	}
}
