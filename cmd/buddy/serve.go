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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/buddy/internal/errors"
	"github.com/kraklabs/buddy/internal/logger"
	"github.com/kraklabs/buddy/internal/metrics"
	"github.com/kraklabs/buddy/internal/server"
	"github.com/kraklabs/buddy/pkg/buddy"
	"github.com/kraklabs/buddy/pkg/llm"
)

// runServe executes the 'serve' command: it builds the provider gateway
// once, wires it into the service and serves HTTP until SIGINT or SIGTERM.
//
// A missing credential does not stop the server. Every AI route then
// answers with the provider_unavailable error and /health keeps working.
func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "Log format: auto, json, console")
	providerName := fs.String("provider", "", "Provider: groq, openrouter, mock")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: buddy serve [options]

Runs the HTTP service.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  buddy serve
  buddy serve --addr :8080 --log-format json
  PROVIDER=groq GROQ_API_KEY=... buddy serve
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot load buddy configuration",
			err.Error(),
			"Fix the file or recreate it with: buddy init --force",
			err,
		), globals.JSON)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *providerName != "" {
		cfg.Provider.Name = *providerName
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid logging options", err.Error(), "Run: buddy serve --help"), globals.JSON)
	}

	srv, gw, err := buildServer(cfg, log, metrics.New())
	if err != nil {
		errors.FatalError(errors.NewConfigError(
			"Cannot create provider client",
			err.Error(),
			"Check the provider section of .buddy/config.yaml",
			err,
		), globals.JSON)
	}

	sel := gw.Selection()
	logger.LogServerStart(log, cfg.Server.Addr, sel.Name, sel.Model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Server stopped unexpectedly",
			err.Error(),
			"Check that the address is free or pick another with --addr",
			err,
		), globals.JSON)
	}
	logger.LogServerShutdown(log, "signal")
}

// buildServer wires gateway, invoker, service and HTTP server from cfg.
func buildServer(cfg *Config, log zerolog.Logger, m *metrics.Metrics) (*server.Server, *llm.Gateway, error) {
	gw, err := llm.NewGateway(cfg.GatewayConfig())
	if err != nil {
		return nil, nil, err
	}
	warnSelection(log, gw)

	mode, err := buddy.ParseStructuredMode(cfg.Provider.StructuredMode)
	if err != nil {
		return nil, nil, err
	}

	llmLog := logger.Component(log, "llm")
	inv := buddy.NewInvoker(gw,
		buddy.WithTimeout(cfg.Provider.Timeout),
		buddy.WithStructuredMode(mode),
		buddy.WithInvokerLogger(llmLog),
		buddy.WithInvokerRecorder(m),
	)
	svc := buddy.NewService(inv,
		buddy.WithCatalog(cfg.Catalog()),
		buddy.WithGeneration(cfg.Generation),
		buddy.WithMaxRepairs(cfg.Provider.MaxRepairs),
		buddy.WithLogger(logger.Component(log, "buddy")),
		buddy.WithRecorder(m),
	)

	srv := server.New(svc, cfg.ServerConfig(),
		server.WithLogger(log),
		server.WithMetrics(m),
	)
	return srv, gw, nil
}

func warnSelection(log zerolog.Logger, gw *llm.Gateway) {
	sel := gw.Selection()
	if sel.Fallback() {
		log.Warn().
			Str("event", "provider.fallback").
			Str("requested", sel.Requested).
			Str("provider", sel.Name).
			Msg("unknown provider, using default")
	}
	if !gw.Available() {
		log.Warn().
			Str("event", "provider.unavailable").
			Str("provider", sel.Name).
			Msg("no credential configured; AI routes will report provider_unavailable")
	}
}
