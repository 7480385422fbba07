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

// Package ui provides colored terminal output for the buddy CLI.
//
// Colors respect the --no-color flag and the NO_COLOR environment variable,
// and are disabled when stdout is not a terminal.
//
// Color usage:
//   - Red: errors, failures
//   - Yellow: warnings
//   - Green: success
//   - Cyan: info, values
//   - Bold: headers, labels
//   - Dim: paths, secondary details
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Pre-configured color instances.
var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Out is where messages are printed. Tests may replace it.
var Out io.Writer = color.Output

// InitColors configures global color output based on the noColor flag.
// Call it right after flag parsing.
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Successf prints a green message with a checkmark prefix.
//
// Example output: "✓ Server healthy (12ms)"
func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(Out, "✓ "+format+"\n", args...)
}

// Warningf prints a yellow message with a warning symbol prefix.
func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(Out, "⚠ "+format+"\n", args...)
}

// Errorf prints a red message with an X prefix.
func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(Out, "✗ "+format+"\n", args...)
}

// Infof prints a cyan message with an info symbol prefix.
func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(Out, "ℹ "+format+"\n", args...)
}

// Header prints a bold header with an underline separator.
//
//	Buddy Server Status
//	===================
func Header(text string) {
	_, _ = Bold.Fprintln(Out, text)
	_, _ = fmt.Fprintln(Out, strings.Repeat("=", len(text)))
}

// Field prints an indented "label: value" line.
func Field(label string, value any) {
	_, _ = fmt.Fprintf(Out, "  %s %s\n", Label(label+":"), Cyan.Sprint(value))
}

// Label returns a bold-formatted label string for inline use.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns a dim-formatted string for less important text.
//
// Example: ui.Successf("Wrote %s", ui.DimText(path))
func DimText(text string) string {
	return Dim.Sprint(text)
}
