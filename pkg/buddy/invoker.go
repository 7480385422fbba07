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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kraklabs/buddy/pkg/llm"
)

// Purpose labels a completion call in logs and metrics.
type Purpose string

const (
	PurposeChat      Purpose = "chat"
	PurposeDiagram   Purpose = "diagram"
	PurposeRepair    Purpose = "repair"
	PurposeRecommend Purpose = "recommend"
	PurposeNarrative Purpose = "narrative"
)

// Completion outcomes reported to the Recorder.
const (
	OutcomeOK          = "ok"
	OutcomeFailed      = "failed"
	OutcomeUnavailable = "unavailable"
)

// DefaultTimeout bounds one completion call.
const DefaultTimeout = 30 * time.Second

// StructuredMode selects how JSON output is requested from the provider.
type StructuredMode string

const (
	StructuredJSONObject StructuredMode = "json_object"
	StructuredJSONSchema StructuredMode = "json_schema"
)

// ParseStructuredMode validates a configured mode. Empty means json_object.
func ParseStructuredMode(s string) (StructuredMode, error) {
	switch StructuredMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", StructuredJSONObject:
		return StructuredJSONObject, nil
	case StructuredJSONSchema:
		return StructuredJSONSchema, nil
	default:
		return "", fmt.Errorf("unknown structured mode %q (supported: json_object, json_schema)", s)
	}
}

// Params are the generation parameters of one call.
type Params struct {
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature,omitempty"`

	// Structured asks for a JSON document as the whole body. Schema is used
	// in json_schema mode and ignored otherwise.
	Structured bool            `yaml:"-"`
	Schema     *llm.JSONSchema `yaml:"-"`
}

// Recorder receives completion and shaping observations.
type Recorder interface {
	RecordCompletion(purpose, outcome string, d time.Duration)
	RecordRepair(outcome string)
	RecordMalformed(purpose string)
}

type nopRecorder struct{}

func (nopRecorder) RecordCompletion(string, string, time.Duration) {}
func (nopRecorder) RecordRepair(string)                            {}
func (nopRecorder) RecordMalformed(string)                         {}

// Completer performs completion calls. *Invoker is the production value.
type Completer interface {
	Available() bool
	Invoke(ctx context.Context, purpose Purpose, msgs []llm.Message, p Params) (string, error)
}

// Invoker performs one completion call against the gateway's provider.
type Invoker struct {
	gateway  *llm.Gateway
	timeout  time.Duration
	mode     StructuredMode
	logger   zerolog.Logger
	recorder Recorder
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithTimeout sets the per-call timeout. Non-positive keeps the default.
func WithTimeout(d time.Duration) InvokerOption {
	return func(inv *Invoker) {
		if d > 0 {
			inv.timeout = d
		}
	}
}

// WithStructuredMode sets how JSON output is requested.
func WithStructuredMode(m StructuredMode) InvokerOption {
	return func(inv *Invoker) { inv.mode = m }
}

// WithInvokerLogger sets the logger.
func WithInvokerLogger(l zerolog.Logger) InvokerOption {
	return func(inv *Invoker) { inv.logger = l }
}

// WithInvokerRecorder sets the metrics recorder.
func WithInvokerRecorder(r Recorder) InvokerOption {
	return func(inv *Invoker) {
		if r != nil {
			inv.recorder = r
		}
	}
}

// NewInvoker creates an Invoker bound to gw.
func NewInvoker(gw *llm.Gateway, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		gateway:  gw,
		timeout:  DefaultTimeout,
		mode:     StructuredJSONObject,
		logger:   zerolog.Nop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Available reports whether the gateway has a usable provider.
func (inv *Invoker) Available() bool { return inv.gateway.Available() }

// Invoke sends msgs and returns the completion text.
//
// Errors are *Error of kind ErrProviderUnavailable, when no call was
// attempted, or ErrCompletionFailed, carrying the transport, API or timeout
// cause.
func (inv *Invoker) Invoke(ctx context.Context, purpose Purpose, msgs []llm.Message, p Params) (string, error) {
	op := "invoke." + string(purpose)

	provider, err := inv.gateway.Provider()
	if err != nil {
		inv.recorder.RecordCompletion(string(purpose), OutcomeUnavailable, 0)
		return "", newError(op, ErrProviderUnavailable, err)
	}

	req := llm.ChatRequest{
		Messages:    msgs,
		Model:       inv.gateway.Model(),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	if p.Structured {
		req.ResponseFormat = inv.responseFormat(p)
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	start := time.Now()
	resp, err := provider.Chat(ctx, req)
	elapsed := time.Since(start)
	if err == nil && resp == nil {
		err = fmt.Errorf("%s returned an empty response", provider.Name())
	}
	if err != nil {
		inv.recorder.RecordCompletion(string(purpose), OutcomeFailed, elapsed)
		inv.logger.Warn().
			Str("event", "completion.failed").
			Str("purpose", string(purpose)).
			Str("provider", provider.Name()).
			Dur("duration", elapsed).
			Err(err).
			Msg("completion call failed")
		return "", newError(op, ErrCompletionFailed, err)
	}

	inv.recorder.RecordCompletion(string(purpose), OutcomeOK, elapsed)
	inv.logger.Debug().
		Str("event", "completion.ok").
		Str("purpose", string(purpose)).
		Str("provider", provider.Name()).
		Str("model", resp.Model).
		Int("prompt_tokens", resp.PromptTokens).
		Int("output_tokens", resp.OutputTokens).
		Dur("duration", elapsed).
		Msg("completion call succeeded")
	return resp.Message.Content, nil
}

func (inv *Invoker) responseFormat(p Params) *llm.ResponseFormat {
	if inv.mode == StructuredJSONSchema && p.Schema != nil {
		return &llm.ResponseFormat{Type: string(StructuredJSONSchema), JSONSchema: p.Schema}
	}
	return &llm.ResponseFormat{Type: string(StructuredJSONObject)}
}
