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

package buddy

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrCompletionFailed    = errors.New("completion failed")
	ErrMalformedOutput     = errors.New("malformed output")
	ErrInvalidRequest      = errors.New("invalid request")
)

// Codes returned to clients next to the error message.
const (
	CodeProviderUnavailable = "provider_unavailable"
	CodeCompletionFailed    = "completion_failed"
	CodeMalformedOutput     = "malformed_output"
	CodeInvalidRequest      = "invalid_request"
	CodeInternal            = "internal"
)

// Error is a failure of one service operation.
//
// errors.Is matches both the Kind sentinel and anything in the Err chain,
// so callers can test for ErrCompletionFailed and context.DeadlineExceeded
// on the same value.
type Error struct {
	Kind error  // one of the Err* sentinels
	Op   string // operation, e.g. "buddy.chat"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func invalidf(op, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidRequest, Op: op, Err: fmt.Errorf(format, args...)}
}

func malformedf(op, format string, args ...any) *Error {
	return &Error{Kind: ErrMalformedOutput, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the failure kind of err, or nil for foreign errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []error{ErrProviderUnavailable, ErrCompletionFailed, ErrMalformedOutput, ErrInvalidRequest} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Code returns the client-facing code for err.
func Code(err error) string {
	switch KindOf(err) {
	case ErrProviderUnavailable:
		return CodeProviderUnavailable
	case ErrCompletionFailed:
		return CodeCompletionFailed
	case ErrMalformedOutput:
		return CodeMalformedOutput
	case ErrInvalidRequest:
		return CodeInvalidRequest
	default:
		return CodeInternal
	}
}

// PublicMessage returns the text shown to clients for err.
// Provider internals are never included; validation messages are.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case ErrProviderUnavailable:
		return "AI provider not configured correctly."
	case ErrCompletionFailed:
		return "Something went wrong with the AI call."
	case ErrMalformedOutput:
		return "The AI returned an unexpected response. Please try again."
	case ErrInvalidRequest:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return "invalid request"
	default:
		return "internal server error"
	}
}
