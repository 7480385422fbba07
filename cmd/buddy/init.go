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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/buddy/internal/errors"
	"github.com/kraklabs/buddy/internal/ui"
	"github.com/kraklabs/buddy/pkg/llm"
)

// runInit executes the 'init' command, creating .buddy/config.yaml in the
// current directory.
//
// API keys are not written; they are read from the environment at startup.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing configuration")
	providerName := fs.String("provider", "", "Provider: groq, openrouter, mock")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: buddy init [options]

Creates .buddy/config.yaml with the default settings.

Examples:
  buddy init
  buddy init --provider groq
  buddy init --force

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(errors.ExitInput)
	}

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError("Cannot get current directory", err.Error(), "", err), globals.JSON)
	}

	path, replaced, err := writeInitConfig(cwd, *providerName, *force)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if replaced {
		ui.Warningf("Overwrote %s", ui.DimText(path))
	} else {
		ui.Successf("Created %s", ui.DimText(path))
	}
	if addToGitignore(cwd) {
		ui.Infof("Added .buddy/ to .gitignore")
	}

	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "Next steps:")
	fmt.Fprintln(ui.Out, "  1. Export GROQ_API_KEY or OPENROUTER_API_KEY")
	fmt.Fprintln(ui.Out, "  2. Run 'buddy serve'")
	fmt.Fprintln(ui.Out, "  3. Run 'buddy check' from another terminal")
}

// writeInitConfig writes the default config under dir and returns its path.
// replaced reports whether an existing file was overwritten.
func writeInitConfig(dir, providerName string, force bool) (path string, replaced bool, err error) {
	path = ConfigPath(dir)
	if _, statErr := os.Stat(path); statErr == nil {
		replaced = true
	}
	if replaced && !force {
		return "", false, errors.NewInputError(
			fmt.Sprintf("%s already exists", path),
			"",
			"Use --force to overwrite it",
		)
	}

	cfg := DefaultConfig()
	if providerName != "" {
		sel := llm.Resolve(llm.GatewayConfig{Selector: providerName, Getenv: func(string) string { return "" }})
		if sel.Fallback() {
			return "", false, errors.NewInputError(
				fmt.Sprintf("Unknown provider %q", providerName),
				"",
				"Use one of: groq, openrouter, mock",
			)
		}
		cfg.Provider.Name = sel.Name
	}

	if err := os.MkdirAll(ConfigDir(dir), 0750); err != nil {
		return "", false, errors.NewConfigError("Cannot create .buddy directory", err.Error(), "Check directory permissions", err)
	}
	if err := SaveConfig(cfg, path); err != nil {
		return "", false, errors.NewConfigError("Cannot save configuration", err.Error(), "Check directory permissions", err)
	}
	return path, replaced, nil
}

// addToGitignore appends .buddy/ to dir/.gitignore when the file exists and
// does not list it yet. It reports whether the file was changed; failures
// are ignored.
func addToGitignore(dir string) bool {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: path built from working dir
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(content), "\n") {
		switch strings.TrimSpace(line) {
		case ".buddy", ".buddy/", "/.buddy", "/.buddy/":
			return false
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: path built from working dir
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	prefix := ""
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		prefix = "\n"
	}
	_, err = fmt.Fprintf(f, "%s.buddy/\n", prefix)
	return err == nil
}
