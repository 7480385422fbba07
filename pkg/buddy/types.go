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

// Package buddy implements the four conversations the AI Buddy client has
// with a language model: future-self chat, thought unknotting, content
// recommendations and interactive stories.
//
// A request flows through three steps. A prompt is built by package prompt,
// one completion is obtained from the [Invoker], and the text is shaped into
// the response: passed through for chat, prefix-checked and repaired for
// diagrams, strictly decoded for recommendations and stories. Nothing is kept
// between requests.
package buddy

import (
	"encoding/json"
	"strings"

	"github.com/kraklabs/buddy/pkg/llm"
)

// Turn is one prior message of a conversation.
type Turn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// UnmarshalJSON accepts "content" as an alias of "text".
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string  `json:"role"`
		Text    *string `json:"text"`
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Role = raw.Role
	t.Text = ""
	switch {
	case raw.Text != nil:
		t.Text = *raw.Text
	case raw.Content != nil:
		t.Text = *raw.Content
	}
	return nil
}

func validateHistory(op string, history []Turn) error {
	for i, turn := range history {
		switch turn.Role {
		case llm.RoleUser, llm.RoleAssistant:
		default:
			return invalidf(op, "history[%d]: role must be %q or %q, got %q", i, llm.RoleUser, llm.RoleAssistant, turn.Role)
		}
		if strings.TrimSpace(turn.Text) == "" {
			return invalidf(op, "history[%d]: text is required", i)
		}
	}
	return nil
}

func toMessages(history []Turn) []llm.Message {
	msgs := make([]llm.Message, len(history))
	for i, turn := range history {
		msgs[i] = llm.Message{Role: turn.Role, Content: turn.Text}
	}
	return msgs
}

// ChatRequest asks the future self for a reply. Only Message is required.
type ChatRequest struct {
	Message    string   `json:"message"`
	History    []Turn   `json:"history,omitempty"`
	Name       string   `json:"name,omitempty"`
	Goals      []string `json:"goals,omitempty"`
	Challenges []string `json:"challenges,omitempty"`
	Tone       string   `json:"tone,omitempty"`
}

// Validate checks required fields and history entries.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return invalidf(opChat, "message is required")
	}
	return validateHistory(opChat, r.History)
}

// ChatReply is the future self's answer.
type ChatReply struct {
	Reply string `json:"reply"`
}

// UnknotRequest carries free-form thoughts to turn into a flowchart.
type UnknotRequest struct {
	Thoughts string `json:"thoughts"`
	// Style is accepted for compatibility; only flowcharts are produced.
	Style string `json:"style,omitempty"`
}

// Validate checks required fields.
func (r *UnknotRequest) Validate() error {
	if strings.TrimSpace(r.Thoughts) == "" {
		return invalidf(opUnknot, "thoughts is required")
	}
	return nil
}

// UnknotResult is a Mermaid flowchart; it always starts with "graph".
type UnknotResult struct {
	Mermaid string `json:"mermaid"`
}

// RecommendRequest carries the conversation to base suggestions on.
type RecommendRequest struct {
	History []Turn `json:"history"`
}

// Validate checks the history is present and well formed.
func (r *RecommendRequest) Validate() error {
	if len(r.History) == 0 {
		return invalidf(opRecommend, "history is required")
	}
	return validateHistory(opRecommend, r.History)
}

// Recommendation is one suggested piece of content.
type Recommendation struct {
	Type  string `json:"type" jsonschema:"enum=video,enum=book,enum=movie"`
	Title string `json:"title" jsonschema:"minLength=1"`
	Query string `json:"query" jsonschema:"minLength=1"`
}

// RecommendResult is the recommendation document.
type RecommendResult struct {
	Recommendations []Recommendation `json:"recommendations" jsonschema:"minItems=3,maxItems=3"`
}

// SimulationRequest advances an interactive story by one turn.
type SimulationRequest struct {
	StoryID    string `json:"story_id"`
	LastChoice string `json:"last_choice,omitempty"`
	TurnCount  *int   `json:"turn_count"`
}

// Validate checks required fields.
func (r *SimulationRequest) Validate() error {
	if strings.TrimSpace(r.StoryID) == "" {
		return invalidf(opSimulate, "story_id is required")
	}
	if r.TurnCount == nil {
		return invalidf(opSimulate, "turn_count is required")
	}
	if *r.TurnCount < 0 {
		return invalidf(opSimulate, "turn_count must be >= 0, got %d", *r.TurnCount)
	}
	return nil
}

// Narrative is one story turn.
type Narrative struct {
	StoryText string   `json:"story_text" jsonschema:"minLength=1"`
	Choices   []string `json:"choices"`
}
