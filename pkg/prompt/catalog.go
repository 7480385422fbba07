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
	"sort"
	"strings"
)

// MasterStoryteller frames stories that are not in the catalog.
const MasterStoryteller = "You are a master storyteller guiding the player through a short interactive story. " +
	"Keep the tone hopeful and grounded, and let every choice matter."

// Story is one playable scenario.
type Story struct {
	Title   string `yaml:"title"`
	Persona string `yaml:"persona"`
}

// Catalog maps story ids to their framing. The zero value is an empty catalog.
type Catalog struct {
	stories map[string]Story
}

// DefaultCatalog returns the built-in stories.
func DefaultCatalog() *Catalog {
	return NewCatalog(map[string]Story{
		"nova-1": {
			Title: "Nova",
			Persona: "You are the narrator of \"Nova\", an interactive story. The player is a junior engineer " +
				"on the orbital research station Nova-1 on the night the station's main reactor starts failing. " +
				"The crew is small, help is days away, and the player has never led anyone before. " +
				"The story is about courage under pressure and learning to trust others.",
		},
	})
}

// NewCatalog builds a catalog from stories. Ids are matched case-insensitively.
func NewCatalog(stories map[string]Story) *Catalog {
	c := &Catalog{stories: make(map[string]Story, len(stories))}
	for id, s := range stories {
		c.Add(id, s)
	}
	return c
}

// Add registers or replaces a story.
func (c *Catalog) Add(id string, s Story) {
	if c.stories == nil {
		c.stories = make(map[string]Story)
	}
	c.stories[normalizeID(id)] = s
}

// Lookup returns the story for id.
func (c *Catalog) Lookup(id string) (Story, bool) {
	if c == nil {
		return Story{}, false
	}
	s, ok := c.stories[normalizeID(id)]
	return s, ok && strings.TrimSpace(s.Persona) != ""
}

// Persona returns the framing for id, or MasterStoryteller when unknown.
func (c *Catalog) Persona(id string) string {
	if s, ok := c.Lookup(id); ok {
		return s.Persona
	}
	return MasterStoryteller
}

// IDs returns the registered story ids in sorted order.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.stories))
	for id := range c.stories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
