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

// Package main implements the buddy CLI, which runs the LLM glue service
// behind the AI Buddy app and helps operate it.
//
// Usage:
//
//	buddy serve                 Run the HTTP service
//	buddy check [--json]        Probe a running server
//	buddy models [--json]       List models of the configured provider
//	buddy init                  Create .buddy/config.yaml
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/buddy/internal/errors"
	"github.com/kraklabs/buddy/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags are the options accepted before the command name.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
}

func main() {
	fs := flag.NewFlagSet("buddy", flag.ContinueOnError)
	fs.SetInterspersed(false)

	var (
		showVersion = fs.Bool("version", false, "Show version and exit")
		configPath  = fs.String("config", "", "Path to config file (default: ./.buddy/config.yaml)")
		globals     GlobalFlags
	)
	fs.BoolVar(&globals.JSON, "json", false, "Print errors as JSON")
	fs.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `buddy - LLM glue service for the AI Buddy app

Usage:
  buddy [global options] <command> [options]

Commands:
  serve     Run the HTTP service
  check     Probe /health of a running server
  models    List models offered by the configured provider
  init      Create .buddy/config.yaml with defaults

Global Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  buddy init --provider groq
  GROQ_API_KEY=... buddy serve --addr :8080
  buddy check --url http://localhost:8080
  buddy models --json

Environment Variables:
  PROVIDER            groq, openrouter or mock (default: openrouter)
  GROQ_API_KEY        Groq credential
  OPENROUTER_API_KEY  OpenRouter credential
  BUDDY_ADDR, PORT    Listen address
  BUDDY_LOG_LEVEL     Log level

For detailed command help: buddy <command> --help
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(errors.ExitSuccess)
		}
		os.Exit(errors.ExitInput)
	}

	ui.InitColors(globals.NoColor)

	if *showVersion {
		fmt.Printf("buddy version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(errors.ExitSuccess)
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(errors.ExitInput)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "serve":
		runServe(cmdArgs, *configPath, globals)
	case "check":
		runCheck(cmdArgs, globals)
	case "models":
		runModels(cmdArgs, *configPath, globals)
	case "init":
		runInit(cmdArgs, globals)
	case "version":
		fmt.Printf("buddy version %s\n", version)
	default:
		errors.FatalError(errors.NewInputError(
			fmt.Sprintf("Unknown command: %s", command),
			"",
			"Run: buddy --help",
		), globals.JSON)
	}
}
