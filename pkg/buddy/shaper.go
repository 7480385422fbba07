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
	"encoding/json"
	"strings"

	"github.com/kraklabs/buddy/pkg/prompt"
)

// MaxDiagramRepairs bounds the corrective calls made for one diagram.
const MaxDiagramRepairs = 1

// FallbackDiagram is returned when no valid diagram could be produced.
const FallbackDiagram = "graph TD; Error[AI failed to generate a valid graph. Please try rephrasing.]"

// diagramPrefix is the minimal check applied to generated diagrams.
const diagramPrefix = "graph"

// DiagramOutcome describes how a diagram was obtained.
type DiagramOutcome string

const (
	DiagramValid    DiagramOutcome = "valid"
	DiagramRepaired DiagramOutcome = "repaired"
	DiagramFallback DiagramOutcome = "fallback"
)

// ValidDiagram reports whether text looks like a Mermaid graph.
func ValidDiagram(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), diagramPrefix)
}

// ShapeDiagram trims text and, while it is invalid, asks c for a correction
// at most maxRepairs times. The result always starts with "graph".
func ShapeDiagram(ctx context.Context, c Completer, text string, maxRepairs int, p Params) (string, DiagramOutcome) {
	text = strings.TrimSpace(text)
	if ValidDiagram(text) {
		return text, DiagramValid
	}

	for attempt := 0; attempt < maxRepairs; attempt++ {
		fixed, err := c.Invoke(ctx, PurposeRepair, prompt.DiagramRepair(text), p)
		if err != nil {
			return FallbackDiagram, DiagramFallback
		}
		text = strings.TrimSpace(fixed)
		if ValidDiagram(text) {
			return text, DiagramRepaired
		}
	}
	return FallbackDiagram, DiagramFallback
}

// ParseRecommendations strictly decodes the recommendation document.
// The document must hold exactly three complete entries.
func ParseRecommendations(text string) ([]Recommendation, error) {
	var doc RecommendResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err != nil {
		return nil, newError(opRecommend, ErrMalformedOutput, err)
	}
	if len(doc.Recommendations) != prompt.RecommendationCount {
		return nil, malformedf(opRecommend, "want %d recommendations, got %d", prompt.RecommendationCount, len(doc.Recommendations))
	}
	for i, r := range doc.Recommendations {
		if strings.TrimSpace(r.Type) == "" || strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Query) == "" {
			return nil, malformedf(opRecommend, "recommendation %d is missing type, title or query", i)
		}
	}
	return doc.Recommendations, nil
}

// ParseNarrative strictly decodes a story turn. On the final stage the
// choices are replaced by the fixed end-of-story options.
func ParseNarrative(text string, stage prompt.Stage) (*Narrative, error) {
	var n Narrative
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &n); err != nil {
		return nil, newError(opSimulate, ErrMalformedOutput, err)
	}
	if strings.TrimSpace(n.StoryText) == "" {
		return nil, malformedf(opSimulate, "story_text is empty")
	}

	if stage == prompt.StageFinal {
		n.Choices = prompt.FinalChoices()
		return &n, nil
	}

	if len(n.Choices) == 0 {
		return nil, malformedf(opSimulate, "choices are empty")
	}
	for i, c := range n.Choices {
		if strings.TrimSpace(c) == "" {
			return nil, malformedf(opSimulate, "choice %d is empty", i)
		}
	}
	return &n, nil
}
