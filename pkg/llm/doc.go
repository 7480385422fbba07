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

// Package llm talks to OpenAI-compatible chat-completion hosts.
//
// Buddy only ever needs one operation from a model: send a role-tagged
// message list with generation parameters and get text back. This package
// owns that exchange and the choice of which host serves it.
//
// # Supported Providers
//
//   - groq: https://api.groq.com/openai/v1, credential GROQ_API_KEY
//   - openrouter: https://openrouter.ai/api/v1, credential OPENROUTER_API_KEY (default)
//   - mock: in-process, no network, for tests and local development
//
// # Gateway
//
// A [Gateway] is built once at startup from a [GatewayConfig]. It resolves
// the selector, host, model and credential, and holds the single client used
// for the lifetime of the process:
//
//	gw, err := llm.NewGateway(llm.GatewayConfig{Selector: "groq"})
//	if err != nil {
//	    return err
//	}
//	p, err := gw.Provider()
//	if errors.Is(err, llm.ErrProviderUnavailable) {
//	    // no credential; do not call out
//	}
//
// When the resolved credential is empty the gateway is unavailable and
// [Gateway.Provider] returns [ErrProviderUnavailable] without touching the
// network.
//
// # Chat Completions
//
//	resp, err := p.Chat(ctx, llm.ChatRequest{
//	    Messages:  llm.BuildChatMessages(system, "hello"),
//	    MaxTokens: 150,
//	})
//
// Set [ChatRequest.ResponseFormat] to ask the host for a JSON document as the
// whole body ("json_object"), or for a document matching a JSON Schema
// ("json_schema").
//
// # Error Handling
//
// Non-200 answers are returned as [*APIError] carrying the status code.
// Network failures, 429 and 5xx answers are retried with jittered exponential
// backoff up to ProviderConfig.MaxRetries times within one Chat call.
//
//	var apiErr *llm.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
//	    // bad credential
//	}
package llm
