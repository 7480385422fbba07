// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Provider selectors.
const (
	ProviderGroq       = "groq"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Built-in hosts and default models.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	GroqModel         = "llama-3.1-8b-instruct"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenRouterModel   = "google/gemma-2-9b-it"

	GroqKeyEnv       = "GROQ_API_KEY"
	OpenRouterKeyEnv = "OPENROUTER_API_KEY"
	SelectorEnv      = "PROVIDER"
)

// ErrProviderUnavailable is returned when no credential was resolved.
var ErrProviderUnavailable = errors.New("llm: provider not configured")

// Endpoint overrides the built-in host, model or credential of one provider.
// Empty fields keep the defaults.
type Endpoint struct {
	BaseURL string
	Model   string
	APIKey  string
}

// GatewayConfig is everything the gateway needs to pick and build a client.
type GatewayConfig struct {
	// Selector names the provider. Empty reads $PROVIDER.
	Selector string

	Groq       Endpoint
	OpenRouter Endpoint

	// Timeout and MaxRetries are passed to the HTTP client.
	Timeout    time.Duration
	MaxRetries int

	// Getenv resolves environment fallbacks. Defaults to os.Getenv.
	Getenv func(string) string
}

// Selection is the resolved provider.
type Selection struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string

	// Requested holds the raw selector when it was not recognized.
	Requested string
}

// Fallback reports whether an unrecognized selector was mapped to the default.
func (s Selection) Fallback() bool { return s.Requested != "" }

// HasCredential reports whether a call can be attempted.
func (s Selection) HasCredential() bool {
	return s.Name == ProviderMock || s.APIKey != ""
}

// Resolve maps configuration to a concrete provider.
// Selector matching is case-insensitive; anything other than groq or mock
// resolves to openrouter.
func Resolve(cfg GatewayConfig) Selection {
	getenv := cfg.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	selector := strings.TrimSpace(cfg.Selector)
	if selector == "" {
		selector = strings.TrimSpace(getenv(SelectorEnv))
	}

	switch strings.ToLower(selector) {
	case ProviderGroq:
		return resolveEndpoint(ProviderGroq, GroqBaseURL, GroqModel, GroqKeyEnv, cfg.Groq, getenv)
	case ProviderMock:
		return Selection{Name: ProviderMock, Model: "mock-model"}
	case "", ProviderOpenRouter:
		return resolveEndpoint(ProviderOpenRouter, OpenRouterBaseURL, OpenRouterModel, OpenRouterKeyEnv, cfg.OpenRouter, getenv)
	default:
		sel := resolveEndpoint(ProviderOpenRouter, OpenRouterBaseURL, OpenRouterModel, OpenRouterKeyEnv, cfg.OpenRouter, getenv)
		sel.Requested = selector
		return sel
	}
}

func resolveEndpoint(name, baseURL, model, keyEnv string, ep Endpoint, getenv func(string) string) Selection {
	sel := Selection{Name: name, BaseURL: baseURL, Model: model, APIKey: ep.APIKey}
	if ep.BaseURL != "" {
		sel.BaseURL = ep.BaseURL
	}
	if ep.Model != "" {
		sel.Model = ep.Model
	}
	if sel.APIKey == "" {
		sel.APIKey = strings.TrimSpace(getenv(keyEnv))
	}
	return sel
}

// Gateway holds the single long-lived client for the process.
// It is immutable after construction and safe for concurrent use.
type Gateway struct {
	selection Selection
	provider  Provider
}

// NewGateway resolves cfg and builds the client. A missing credential is not
// an error here: the gateway is created unavailable.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	sel := Resolve(cfg)
	if !sel.HasCredential() {
		return &Gateway{selection: sel}, nil
	}

	pcfg := ProviderConfig{
		Type:         sel.Name,
		BaseURL:      sel.BaseURL,
		APIKey:       sel.APIKey,
		DefaultModel: sel.Model,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
	}
	if sel.Name == ProviderOpenRouter {
		pcfg.Headers = map[string]string{"X-Title": "buddy"}
	}

	p, err := NewProvider(pcfg)
	if err != nil {
		return nil, err
	}
	return &Gateway{selection: sel, provider: p}, nil
}

// NewGatewayWithProvider wraps an existing provider. A nil provider yields an
// unavailable gateway.
func NewGatewayWithProvider(sel Selection, p Provider) *Gateway {
	return &Gateway{selection: sel, provider: p}
}

// Selection returns the resolved provider.
func (g *Gateway) Selection() Selection { return g.selection }

// Available reports whether completions can be attempted.
func (g *Gateway) Available() bool { return g != nil && g.provider != nil }

// Provider returns the client or ErrProviderUnavailable.
func (g *Gateway) Provider() (Provider, error) {
	if !g.Available() {
		return nil, ErrProviderUnavailable
	}
	return g.provider, nil
}

// Model returns the model requests are sent to.
func (g *Gateway) Model() string { return g.selection.Model }
