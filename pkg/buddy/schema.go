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
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/kraklabs/buddy/pkg/llm"
)

// reflectSchema derives the response schema sent in json_schema mode.
func reflectSchema(name, description string, v any) *llm.JSONSchema {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
	}
	s := r.Reflect(v)
	// Hosts reject the draft URI inside response_format.
	s.Version = ""
	s.ID = ""
	s.Description = description

	return &llm.JSONSchema{Name: name, Schema: s, Strict: true}
}

var (
	recommendSchema = sync.OnceValue(func() *llm.JSONSchema {
		return reflectSchema("recommendations", "Exactly three content suggestions: one video, one book, one movie.", &RecommendResult{})
	})
	narrativeSchema = sync.OnceValue(func() *llm.JSONSchema {
		return reflectSchema("story_turn", "One turn of an interactive story.", &Narrative{})
	})
)

// RecommendSchema returns the schema of the recommendation document.
func RecommendSchema() *llm.JSONSchema { return recommendSchema() }

// NarrativeSchema returns the schema of a story turn.
func NarrativeSchema() *llm.JSONSchema { return narrativeSchema() }
