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
//go:build integration
// +build integration

package llm

import (
	"context"
	"testing"
	"time"
)

// Runs against the host selected by $PROVIDER with its real credential.
func TestGateway_Integration(t *testing.T) {
	gw, err := NewGateway(GatewayConfig{Timeout: 2 * time.Minute})
	if err != nil {
		t.Fatalf("NewGateway error: %v", err)
	}
	provider, err := gw.Provider()
	if err != nil {
		t.Skipf("no credential for %s: %v", gw.Selection().Name, err)
	}

	t.Logf("Provider: %s model=%s", provider.Name(), gw.Model())

	ctx := context.Background()
	resp, err := provider.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a supportive friend. Be concise."},
			{Role: RoleUser, Content: "What is 2+2? Answer with just the number."},
		},
		MaxTokens:   10,
		Temperature: Temperature(0.1),
	})
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}

	t.Logf("Response: %s", resp.Message.Content)
	t.Logf("Tokens: %d prompt + %d output = %d total", resp.PromptTokens, resp.OutputTokens, resp.TotalTokens)
	t.Logf("Duration: %v", resp.Duration)
}
