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
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/buddy/internal/errors"
	"github.com/kraklabs/buddy/internal/output"
	"github.com/kraklabs/buddy/internal/server"
	"github.com/kraklabs/buddy/internal/ui"
)

// CheckResult is the outcome of probing a server.
type CheckResult struct {
	URL        string    `json:"url"`
	OK         bool      `json:"ok"`
	ServerTime time.Time `json:"server_time,omitzero"`
	LatencyMS  int64     `json:"latency_ms"`
	RequestID  string    `json:"request_id,omitempty"`
}

// runCheck executes the 'check' command against GET /health.
func runCheck(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8000", "Base URL of the buddy server")
	timeout := fs.Duration("timeout", 5*time.Second, "Probe timeout")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: buddy check [options]

Probes /health of a running server. Exits with code 3 when it is not healthy.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}
	asJSON := *jsonOutput || globals.JSON

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := probeHealth(ctx, http.DefaultClient, *url)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Cannot reach buddy server",
			err.Error(),
			"Start it with: buddy serve",
			err,
		), asJSON)
	}

	if asJSON {
		if err := output.JSON(res); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Successf("Server healthy (%dms)", res.LatencyMS)
	ui.Field("URL", res.URL)
	ui.Field("Server time", res.ServerTime.Format(time.RFC3339))
	if res.RequestID != "" {
		ui.Field("Request ID", res.RequestID)
	}
}

// probeHealth calls GET {base}/health and decodes the answer.
func probeHealth(ctx context.Context, client *http.Client, base string) (*CheckResult, error) {
	url := strings.TrimRight(base, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	var health server.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	if !health.OK {
		return nil, fmt.Errorf("GET %s: server reported not ok", url)
	}

	return &CheckResult{
		URL:        url,
		OK:         true,
		ServerTime: time.Unix(health.Time, 0).UTC(),
		LatencyMS:  time.Since(start).Milliseconds(),
		RequestID:  resp.Header.Get(server.RequestIDHeader),
	}, nil
}
