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
	"errors"

	"github.com/rs/zerolog"

	"github.com/kraklabs/buddy/pkg/llm"
	"github.com/kraklabs/buddy/pkg/prompt"
)

const (
	opChat      = "buddy.chat"
	opUnknot    = "buddy.unknot"
	opRecommend = "buddy.recommend"
	opSimulate  = "buddy.simulate"
)

// Generation holds the parameters of each kind of call.
type Generation struct {
	Chat      Params `yaml:"chat"`
	Diagram   Params `yaml:"diagram"`
	Repair    Params `yaml:"repair"`
	Recommend Params `yaml:"recommend"`
	Narrative Params `yaml:"narrative"`
}

// DefaultGeneration returns the built-in parameters.
func DefaultGeneration() Generation {
	return Generation{
		Chat:      Params{MaxTokens: 150},
		Diagram:   Params{MaxTokens: 400, Temperature: llm.Temperature(0.5)},
		Repair:    Params{MaxTokens: 400, Temperature: llm.Temperature(0.2)},
		Recommend: Params{MaxTokens: 500, Temperature: llm.Temperature(0.7)},
		Narrative: Params{MaxTokens: 400, Temperature: llm.Temperature(0.8)},
	}
}

// Service composes prompt building, completion and shaping per use case.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	completer  Completer
	catalog    *prompt.Catalog
	gen        Generation
	maxRepairs int
	logger     zerolog.Logger
	recorder   Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog sets the story catalog.
func WithCatalog(c *prompt.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithGeneration sets per-call generation parameters.
func WithGeneration(g Generation) Option {
	return func(s *Service) { s.gen = g }
}

// WithMaxRepairs overrides MaxDiagramRepairs.
func WithMaxRepairs(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxRepairs = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a Service backed by c.
func NewService(c Completer, opts ...Option) *Service {
	s := &Service{
		completer:  c,
		catalog:    prompt.DefaultCatalog(),
		gen:        DefaultGeneration(),
		maxRepairs: MaxDiagramRepairs,
		logger:     zerolog.Nop(),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ready fails fast when no provider is configured, before any prompt is built.
func (s *Service) ready(op string) error {
	if !s.completer.Available() {
		return newError(op, ErrProviderUnavailable, llm.ErrProviderUnavailable)
	}
	return nil
}

// Chat returns the future self's reply, verbatim.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ready(opChat); err != nil {
		return nil, err
	}

	msgs := prompt.Chat(prompt.ChatInput{
		Message:    req.Message,
		History:    toMessages(req.History),
		Name:       req.Name,
		Goals:      req.Goals,
		Challenges: req.Challenges,
		Tone:       req.Tone,
	})

	text, err := s.completer.Invoke(ctx, PurposeChat, msgs, s.gen.Chat)
	if err != nil {
		return nil, err
	}
	return &ChatReply{Reply: text}, nil
}

// Unknot turns thoughts into a flowchart. Generation failures yield
// FallbackDiagram; only a missing provider is returned as an error.
func (s *Service) Unknot(ctx context.Context, req UnknotRequest) (*UnknotResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ready(opUnknot); err != nil {
		return nil, err
	}

	text, err := s.completer.Invoke(ctx, PurposeDiagram, prompt.Diagram(req.Thoughts), s.gen.Diagram)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return nil, err
		}
		s.recorder.RecordRepair(string(DiagramFallback))
		s.logger.Warn().Str("event", "diagram.fallback").Err(err).Msg("diagram generation failed")
		return &UnknotResult{Mermaid: FallbackDiagram}, nil
	}

	diagram, outcome := ShapeDiagram(ctx, s.completer, text, s.maxRepairs, s.gen.Repair)
	if outcome != DiagramValid {
		s.recorder.RecordRepair(string(outcome))
		s.logger.Info().
			Str("event", "diagram.repair").
			Str("outcome", string(outcome)).
			Int("max_repairs", s.maxRepairs).
			Msg("diagram did not start with graph")
	}
	return &UnknotResult{Mermaid: diagram}, nil
}

// Recommend suggests one video, one book and one movie.
func (s *Service) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ready(opRecommend); err != nil {
		return nil, err
	}

	p := s.gen.Recommend
	p.Structured = true
	p.Schema = RecommendSchema()

	text, err := s.completer.Invoke(ctx, PurposeRecommend, prompt.Recommend(toMessages(req.History)), p)
	if err != nil {
		return nil, err
	}

	recs, err := ParseRecommendations(text)
	if err != nil {
		s.malformed(PurposeRecommend, text, err)
		return nil, err
	}
	return &RecommendResult{Recommendations: recs}, nil
}

// Simulate advances the story by one turn.
func (s *Service) Simulate(ctx context.Context, req SimulationRequest) (*Narrative, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ready(opSimulate); err != nil {
		return nil, err
	}

	turn := *req.TurnCount
	stage := prompt.StageOf(req.LastChoice, turn)
	if _, known := s.catalog.Lookup(req.StoryID); !known {
		s.logger.Debug().Str("event", "story.unknown").Str("story_id", req.StoryID).Msg("using master storyteller")
	}

	p := s.gen.Narrative
	p.Structured = true
	p.Schema = NarrativeSchema()

	msgs := prompt.Narrative(s.catalog.Persona(req.StoryID), req.LastChoice, turn)
	text, err := s.completer.Invoke(ctx, PurposeNarrative, msgs, p)
	if err != nil {
		return nil, err
	}

	n, err := ParseNarrative(text, stage)
	if err != nil {
		s.malformed(PurposeNarrative, text, err)
		return nil, err
	}
	return n, nil
}

func (s *Service) malformed(purpose Purpose, text string, err error) {
	s.recorder.RecordMalformed(string(purpose))
	s.logger.Warn().
		Str("event", "output.malformed").
		Str("purpose", string(purpose)).
		Int("length", len(text)).
		Err(err).
		Msg("completion did not match the expected document")
}
