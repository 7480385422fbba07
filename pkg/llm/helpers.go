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

package llm

import (
	"math/rand/v2"
	"time"
)

// BuildChatMessages creates a chat message array with system prompt.
// History is kept in its original order between the system and user turns.
func BuildChatMessages(systemPrompt, userPrompt string, history ...Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: userPrompt})
	return messages
}

// SystemOnly wraps a single instruction as a one-message conversation.
func SystemOnly(instruction string) []Message {
	return []Message{{Role: RoleSystem, Content: instruction}}
}

// Backoff settings for transient upstream failures.
const (
	backoffBase = 500 * time.Millisecond
	backoffMax  = 4 * time.Second
)

// defaultBackoff computes exponential backoff with +/-25% jitter.
// attempt 0: ~500ms, 1: ~1s, 2: ~2s, then capped at 4s.
func defaultBackoff(attempt int) time.Duration {
	d := backoffBase << attempt
	if d <= 0 || d > backoffMax {
		d = backoffMax
	}
	jitter := float64(d) * 0.25 * (rand.Float64()*2 - 1)
	return d + time.Duration(jitter)
}
