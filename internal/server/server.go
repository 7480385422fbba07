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

// Package server exposes the buddy service over HTTP.
//
// Routes:
//
//	GET  /health      liveness, never touches the provider
//	POST /chat        future-self reply
//	POST /unknot      thoughts to Mermaid flowchart
//	POST /recommend   three content suggestions
//	POST /simulation  one interactive story turn
//	GET  /metrics     Prometheus exposition, when enabled
//
// Logical failures (no provider, failed completion, malformed model output)
// are answered with status 200 and an {"error", "code"} body. Invalid
// requests get 400 and panics 500.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/kraklabs/buddy/internal/logger"
	"github.com/kraklabs/buddy/internal/metrics"
	"github.com/kraklabs/buddy/internal/output"
	"github.com/kraklabs/buddy/pkg/buddy"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

// Service is the set of operations served over HTTP. *buddy.Service
// implements it.
type Service interface {
	Chat(ctx context.Context, req buddy.ChatRequest) (*buddy.ChatReply, error)
	Unknot(ctx context.Context, req buddy.UnknotRequest) (*buddy.UnknotResult, error)
	Recommend(ctx context.Context, req buddy.RecommendRequest) (*buddy.RecommendResult, error)
	Simulate(ctx context.Context, req buddy.SimulationRequest) (*buddy.Narrative, error)
}

// Config holds listener settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	ExposeMetrics   bool
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
		ExposeMetrics:   true,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK   bool  `json:"ok"`
	Time int64 `json:"time"`
}

// Server serves a Service.
type Server struct {
	svc     Service
	cfg     Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Request lines are tagged component=http.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger.Component(l, "http") }
}

// WithMetrics records request metrics on m and, when the config asks for
// it, mounts GET /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock replaces time.Now for the health endpoint.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a Server.
func New(svc Service, cfg Config, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /unknot", s.handleUnknot)
	mux.HandleFunc("POST /recommend", s.handleRecommend)
	mux.HandleFunc("POST /simulation", s.handleSimulation)
	if s.metrics != nil && s.cfg.ExposeMetrics {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = cors(s.cfg.CORSOrigins, h)
	h = s.recoverPanics(h)
	h = s.instrument(h)
	h = requestID(h)
	return h
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains in-flight
// requests for at most ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{OK: true, Time: s.now().Unix()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req buddy.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := s.svc.Chat(r.Context(), req)
	s.respond(w, r, reply, err)
}

func (s *Server) handleUnknot(w http.ResponseWriter, r *http.Request) {
	var req buddy.UnknotRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Unknot(r.Context(), req)
	s.respond(w, r, res, err)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req buddy.RecommendRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Recommend(r.Context(), req)
	s.respond(w, r, res, err)
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	var req buddy.SimulationRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Simulate(r.Context(), req)
	s.respond(w, r, res, err)
}

// decode reads a JSON body into v. On failure it writes the error response
// and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), buddy.CodeInvalidRequest)
	case errors.Is(err, io.EOF):
		s.writeError(w, http.StatusBadRequest, "request body is required", buddy.CodeInvalidRequest)
	default:
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), buddy.CodeInvalidRequest)
	}
	return false
}

// respond writes res, or the error body matching err's kind.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, res any, err error) {
	if err == nil {
		s.writeJSON(w, http.StatusOK, res)
		return
	}

	code := buddy.Code(err)
	status := statusFor(code)
	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.
		Str("event", "request.failed").
		Str("path", r.URL.Path).
		Str("code", code).
		Str("request_id", RequestIDFrom(r.Context())).
		Err(err).
		Msg("request failed")

	s.writeError(w, status, buddy.PublicMessage(err), code)
}

// statusFor maps an error code to the HTTP status of its response.
func statusFor(code string) int {
	switch code {
	case buddy.CodeInvalidRequest:
		return http.StatusBadRequest
	case buddy.CodeProviderUnavailable, buddy.CodeCompletionFailed, buddy.CodeMalformedOutput:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if err := output.WriteJSON(w, status, v); err != nil {
		s.logger.Debug().Err(err).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, code string) {
	if err := output.WriteError(w, status, message, code); err != nil {
		s.logger.Debug().Err(err).Msg("write error response")
	}
}
