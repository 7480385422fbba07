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

// Package testing provides a fake OpenAI-compatible upstream for tests that
// exercise the real HTTP provider client.
//
//	func TestUnknot_Repair(t *testing.T) {
//	    up := buddytest.SetupFakeUpstream(t,
//	        buddytest.Text("Here is a chart"),
//	        buddytest.Text("graph TD; A-->B"),
//	    )
//	    gw, _ := llm.NewGateway(llm.GatewayConfig{
//	        Selector: llm.ProviderGroq,
//	        Groq:     llm.Endpoint{BaseURL: up.URL, APIKey: "test-key"},
//	    })
//	    // ... call the service, then:
//	    require.Equal(t, 2, up.Hits())
//	}
//
// Replies are consumed in order. A request after the last reply is answered
// with 500.
package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FakeModel is the only model listed by GET /models.
const FakeModel = "fake-model"

// Reply is one scripted answer to POST /chat/completions.
type Reply struct {
	Status  int
	Content string // assistant message, used when Status is 200
	Body    string // raw body, used otherwise
}

// Text answers with a successful completion carrying content.
func Text(content string) Reply {
	return Reply{Status: http.StatusOK, Content: content}
}

// Status answers with a non-200 status and a raw body.
func Status(code int, body string) Reply {
	return Reply{Status: code, Body: body}
}

// Message is one outbound chat message as seen by the upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatPayload is a decoded POST /chat/completions body.
type ChatPayload struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    *float64        `json:"temperature"`
	ResponseFormat json.RawMessage `json:"response_format"`

	Authorization string `json:"-"`
}

// FakeUpstream is a scripted chat completions server.
type FakeUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []Reply
	requests []ChatPayload
}

// SetupFakeUpstream starts a FakeUpstream and closes it when the test ends.
func SetupFakeUpstream(t *testing.T, replies ...Reply) *FakeUpstream {
	t.Helper()

	f := &FakeUpstream{replies: replies}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/completions", f.handleChat)
	mux.HandleFunc("GET /models", handleModels)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Hits returns the number of chat completion requests received.
func (f *FakeUpstream) Hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns the decoded chat completion requests, in order.
func (f *FakeUpstream) Requests() []ChatPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ChatPayload, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeUpstream) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload ChatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Authorization = r.Header.Get("Authorization")

	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, payload)
	f.mu.Unlock()

	if n >= len(f.replies) {
		http.Error(w, `{"error": {"message": "no scripted reply"}}`, http.StatusInternalServerError)
		return
	}
	reply := f.replies[n]

	w.Header().Set("Content-Type", "application/json")
	if reply.Status != http.StatusOK {
		w.WriteHeader(reply.Status)
		_, _ = w.Write([]byte(reply.Body))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model": payload.Model,
		"choices": []map[string]any{{
			"message":       Message{Role: "assistant", Content: reply.Content},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func handleModels(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data": [{"id": "` + FakeModel + `"}]}`))
}
