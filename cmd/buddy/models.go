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
	"sort"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/buddy/internal/errors"
	"github.com/kraklabs/buddy/internal/output"
	"github.com/kraklabs/buddy/internal/ui"
	"github.com/kraklabs/buddy/pkg/llm"
)

// ModelsResult is the JSON output of 'buddy models'.
type ModelsResult struct {
	Provider string   `json:"provider"`
	Default  string   `json:"default_model"`
	Models   []string `json:"models"`
}

// runModels executes the 'models' command: it lists the models offered by
// the configured provider.
func runModels(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	providerName := fs.String("provider", "", "Provider: groq, openrouter, mock")
	timeout := fs.Duration("timeout", 15*time.Second, "Request timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: buddy models [options]

Lists the models offered by the configured provider.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}
	asJSON := *jsonOutput || globals.JSON

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot load buddy configuration", err.Error(), "Fix the file or run: buddy init --force", err), asJSON)
	}
	if *providerName != "" {
		cfg.Provider.Name = *providerName
	}

	gw, err := llm.NewGateway(cfg.GatewayConfig())
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot create provider client", err.Error(), "Check the provider section of .buddy/config.yaml", err), asJSON)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := listModels(ctx, gw)
	if err != nil {
		errors.FatalError(err, asJSON)
	}

	if asJSON {
		if err := output.JSON(res); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Header(fmt.Sprintf("Models offered by %s", res.Provider))
	for _, m := range res.Models {
		if m == res.Default {
			fmt.Fprintf(ui.Out, "  %s %s\n", ui.Green.Sprint(m), ui.DimText("(default)"))
			continue
		}
		fmt.Fprintf(ui.Out, "  %s\n", m)
	}
}

// listModels asks the gateway's provider for its models, sorted by name.
func listModels(ctx context.Context, gw *llm.Gateway) (*ModelsResult, error) {
	sel := gw.Selection()
	p, err := gw.Provider()
	if err != nil {
		return nil, errors.NewConfigError(
			"AI provider not configured",
			fmt.Sprintf("no API key for %s", sel.Name),
			credentialFix(sel.Name),
			err,
		)
	}

	models, err := p.Models(ctx)
	if err != nil {
		return nil, errors.NewNetworkError(
			fmt.Sprintf("Cannot list models from %s", sel.Name),
			err.Error(),
			"Check the base URL and your network connection",
			err,
		)
	}
	sort.Strings(models)
	return &ModelsResult{Provider: sel.Name, Default: sel.Model, Models: models}, nil
}

func credentialFix(provider string) string {
	switch provider {
	case llm.ProviderGroq:
		return "Export " + llm.GroqKeyEnv + " or set provider.groq.api_key"
	default:
		return "Export " + llm.OpenRouterKeyEnv + " or set provider.openrouter.api_key"
	}
}
