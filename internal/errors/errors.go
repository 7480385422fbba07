// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the buddy CLI.
//
// A UserError says what went wrong, why, and how to fix it, and carries the
// exit code the process should end with:
//
//	err := errors.NewConfigError(
//	    "Cannot load buddy configuration",
//	    "yaml: line 3: mapping values are not allowed in this context",
//	    "Fix the syntax in .buddy/config.yaml or run: buddy init --force",
//	    parseErr,
//	)
//	errors.FatalError(err, jsonMode)
//
// Terminal output (colored unless NO_COLOR is set):
//
//	Error: Cannot load buddy configuration
//	Cause: yaml: line 3: mapping values are not allowed in this context
//	Fix:   Fix the syntax in .buddy/config.yaml or run: buddy init --force
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid configuration, no provider credential
//   - ExitNetwork (3): server or provider not reachable
//   - ExitInput (4): bad arguments
//   - ExitInternal (10): bugs
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (bad config file, missing credential).
	ExitConfig = 1

	// ExitNetwork indicates the server or the provider could not be reached.
	ExitNetwork = 3

	// ExitInput indicates invalid user input (bad arguments, unknown command).
	ExitInput = 4

	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
type UserError struct {
	Message  string // what went wrong
	Cause    string // why it happened
	Fix      string // what to do about it
	ExitCode int
	Err      error // underlying error, optional
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError creates a configuration error with exit code ExitConfig.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewNetworkError creates a network error with exit code ExitNetwork.
//
// Example:
//
//	return NewNetworkError(
//	    "Cannot reach buddy server",
//	    "Get \"http://localhost:8000/health\": connection refused",
//	    "Start it with: buddy serve",
//	    err,
//	)
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError creates an input validation error with exit code ExitInput.
// Input errors do not wrap an underlying error.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewInternalError creates an internal error with exit code ExitInternal.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns the error for terminal display. Empty Cause or Fix lines
// are omitted. Colors are disabled by noColor or NO_COLOR.
//
// Format temporarily modifies color.NoColor and restores it before returning.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// Report writes err to w and returns the exit code to use. A UserError
// anywhere in the chain is rendered with Format or ToJSON; any other error
// is reported as internal.
func Report(w io.Writer, err error, jsonOutput bool) int {
	if err == nil {
		return ExitSuccess
	}

	var ue *UserError
	if !stderrors.As(err, &ue) {
		ue = NewInternalError(err.Error(), "", "", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		// Encode error is ignored: the caller is about to exit anyway.
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(w, ue.Format(false))
	}
	return ue.ExitCode
}

// FatalError prints the error to stderr and exits with its code.
// It never returns for a non-nil err.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	os.Exit(Report(os.Stderr, err, jsonOutput))
}
