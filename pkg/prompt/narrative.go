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

// FinalTurn is the turn count at which a story concludes.
const FinalTurn = 5

// ChoiceCount is how many choices a non-final turn offers.
const ChoiceCount = 3

// Fixed options offered once a story has ended.
const (
	ChoicePlayAgain   = "Play Again"
	ChoiceReturnToHub = "Return to Hub"
)

// FinalChoices returns the options of a concluded story.
func FinalChoices() []string {
	return []string{ChoicePlayAgain, ChoiceReturnToHub}
}

// Stage is where a narrative turn sits in the story.
type Stage int

const (
	StageOpening Stage = iota
	StageMiddle
	StageFinal
)

func (s Stage) String() string {
	switch s {
	case StageOpening:
		return "opening"
	case StageMiddle:
		return "middle"
	case StageFinal:
		return "final"
	default:
		return "unknown"
	}
}

// StageOf classifies a turn. The final threshold wins over a missing choice.
func StageOf(lastChoice string, turnCount int) Stage {
	switch {
	case turnCount >= FinalTurn:
		return StageFinal
	case strings.TrimSpace(lastChoice) == "":
		return StageOpening
	default:
		return StageMiddle
	}
}

// Narrative builds the instruction for the next turn of an interactive story.
// persona is the framing from the Catalog.
func Narrative(persona, lastChoice string, turnCount int) []llm.Message {
	lastChoice = strings.TrimSpace(lastChoice)

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")

	switch StageOf(lastChoice, turnCount) {
	case StageOpening:
		sb.WriteString("This is the opening of the story. Introduce the scenario in 1-2 sentences.\n")
		fmt.Fprintf(&sb, "Then present exactly %d choices for what the player does next.\n", ChoiceCount)
	case StageMiddle:
		fmt.Fprintf(&sb, "The player just chose: %q.\n", lastChoice)
		sb.WriteString("Continue the story in 1-2 sentences, reacting directly to that choice.\n")
		fmt.Fprintf(&sb, "Then present exactly %d new and distinct choices.\n", ChoiceCount)
	case StageFinal:
		if lastChoice != "" {
			fmt.Fprintf(&sb, "The player's final choice was: %q.\n", lastChoice)
			sb.WriteString("This is the end of the story. Write a short reflective conclusion that references the final choice.\n")
		} else {
			sb.WriteString("This is the end of the story. Write a short reflective conclusion to the journey so far.\n")
		}
		fmt.Fprintf(&sb, "The choices must be exactly [%q, %q].\n", ChoicePlayAgain, ChoiceReturnToHub)
	}

	sb.WriteString("\nRespond with a single JSON object with two keys:\n")
	sb.WriteString(`- "story_text": the narrative text` + "\n")
	sb.WriteString(`- "choices": an ordered list of choice strings` + "\n")
	sb.WriteString("Do not add any text before or after the JSON.\n")

	return llm.SystemOnly(sb.String())
}
