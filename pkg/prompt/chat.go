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

// Package prompt renders the message sequences sent to the model.
//
// Every builder is a pure function of its input. Each returned sequence
// starts with exactly one system message; prior turns follow in their
// original order and, where there is one, the newest user turn is last.
package prompt

import (
	"fmt"
	"strings"

	"github.com/kraklabs/buddy/pkg/llm"
)

// Defaults for optional chat fields.
const (
	DefaultName  = "Friend"
	DefaultTone  = "casual, supportive"
	notSpecified = "Not specified"
)

// ChatInput is the personalization and conversation for a future-self reply.
type ChatInput struct {
	Message    string
	History    []llm.Message
	Name       string
	Goals      []string
	Challenges []string
	Tone       string
}

// Chat builds the future-self conversation: system persona, history, message.
func Chat(in ChatInput) []llm.Message {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = DefaultName
	}
	tone := strings.TrimSpace(in.Tone)
	if tone == "" {
		tone = DefaultTone
	}

	var sb strings.Builder
	sb.WriteString("You are the user's future self from 1 year from now.\n")
	fmt.Fprintf(&sb, "Your name is Future %s.\n", name)
	fmt.Fprintf(&sb, "Be supportive, concrete, and use a %s tone.\n", tone)
	sb.WriteString("Speak in 3-6 short sentences. Give realistic suggestions.\n\n")
	sb.WriteString("Here is some critical context about your past self (the user):\n")
	fmt.Fprintf(&sb, "- Their goals: %s\n", joinOrUnspecified(in.Goals))
	fmt.Fprintf(&sb, "- Their challenges: %s\n\n", joinOrUnspecified(in.Challenges))
	sb.WriteString("Use this context to give highly specific and relevant advice. ")
	sb.WriteString("For example, if they mention a challenge, address it directly in your response.")

	return llm.BuildChatMessages(sb.String(), in.Message, in.History...)
}

func joinOrUnspecified(items []string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return notSpecified
	}
	return strings.Join(kept, ", ")
}
