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

package prompt

import (
	"fmt"
	"strings"

	"github.com/kraklabs/buddy/pkg/llm"
)

// RecommendationsKey is the top-level key of the recommendation document.
const RecommendationsKey = "recommendations"

// RecommendationCount is how many suggestions are asked for.
const RecommendationCount = 3

const recommendExample = `{
  "recommendations": [
    {"type": "video", "title": "How to Stop Overthinking", "query": "how to stop overthinking talk"},
    {"type": "book", "title": "Atomic Habits", "query": "Atomic Habits James Clear"},
    {"type": "movie", "title": "The Pursuit of Happyness", "query": "The Pursuit of Happyness movie"}
  ]
}`

// Sentiment joins the text of every user-authored turn, space separated.
// A history without user text falls back to all turns.
func Sentiment(history []llm.Message) string {
	if s := joinTurns(history, llm.RoleUser); s != "" {
		return s
	}
	return joinTurns(history, "")
}

// joinTurns joins non-empty turns of role, or of any role when role is "".
func joinTurns(history []llm.Message, role string) string {
	parts := make([]string, 0, len(history))
	for _, m := range history {
		if role != "" && m.Role != role {
			continue
		}
		if s := strings.TrimSpace(m.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Recommend builds the suggestion request from the conversation so far.
func Recommend(history []llm.Message) []llm.Message {
	var sb strings.Builder
	sb.WriteString("You are a thoughtful companion who recommends uplifting content.\n")
	fmt.Fprintf(&sb, "Based on what the user has been saying: \"%s\"\n\n", Sentiment(history))
	fmt.Fprintf(&sb, "Suggest exactly %d pieces of content: one video, one book, and one movie.\n", RecommendationCount)
	sb.WriteString("Each suggestion is an object with:\n")
	sb.WriteString(`- "type": one of "video", "book", "movie"` + "\n")
	sb.WriteString(`- "title": the display title` + "\n")
	sb.WriteString(`- "query": a search query that finds it` + "\n\n")
	fmt.Fprintf(&sb, "Respond with a single JSON object whose only key is %q holding the list.\n", RecommendationsKey)
	sb.WriteString("Do not add any text before or after the JSON.\n\n")
	sb.WriteString("Example:\n")
	sb.WriteString(recommendExample)

	return llm.SystemOnly(sb.String())
}
