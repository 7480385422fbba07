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
	"github.com/kraklabs/buddy/pkg/llm"
)

// DiagramPrefix is what every generated flowchart must start with.
const DiagramPrefix = "graph TD;"

const diagramInstruction = `You are a system that converts a user's messy thoughts into a valid Mermaid flowchart.
Your output MUST be ONLY the Mermaid code and nothing else. No explanations, no apologies, no extra text.
Do not wrap the output in code fences.
The output must start with ` + "`" + DiagramPrefix + "`" + ` and contain nodes and connections.

Example Input: "I'm torn between getting a job and starting my own company. A job is safe but a company could be big."
Example Output:
graph TD;
    A[Dilemma: Job vs. Own Company] --> B[Option 1: Get a Job];
    A --> C[Option 2: Start Company];
    B --> B1[Pro: Safety & Security];
    C --> C1[Pro: High Potential];
    C --> C2[Con: High Risk];

The next message contains the user's thoughts. Convert them.`

const repairInstruction = `Your previous answer was supposed to be a Mermaid flowchart but it is not valid.
Rewrite it as a corrected Mermaid flowchart that keeps the same ideas.
Your output MUST be ONLY the Mermaid code and nothing else. No explanations, no apologies, no code fences.
The output must start with ` + "`" + DiagramPrefix + "`" + `.

The broken output is in the next message.`

// Diagram builds the thoughts-to-flowchart conversation.
func Diagram(thoughts string) []llm.Message {
	return llm.BuildChatMessages(diagramInstruction, thoughts)
}

// DiagramRepair builds the corrective conversation for an invalid diagram.
func DiagramRepair(broken string) []llm.Message {
	return llm.BuildChatMessages(repairInstruction, "Broken output:\n"+broken)
}
