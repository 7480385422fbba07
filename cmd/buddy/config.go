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
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/buddy/internal/logger"
	"github.com/kraklabs/buddy/internal/server"
	"github.com/kraklabs/buddy/pkg/buddy"
	"github.com/kraklabs/buddy/pkg/llm"
	"github.com/kraklabs/buddy/pkg/prompt"
)

const (
	configDirName  = ".buddy"
	configFileName = "config.yaml"
)

// Config is the content of .buddy/config.yaml.
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Provider   ProviderConfig          `yaml:"provider"`
	Log        LogConfig               `yaml:"log"`
	Generation buddy.Generation        `yaml:"generation"`
	Stories    map[string]prompt.Story `yaml:"stories,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	Metrics         bool          `yaml:"metrics"`
}

// ProviderConfig selects and tunes the completion provider.
type ProviderConfig struct {
	// Name is groq, openrouter or mock. Empty defers to $PROVIDER.
	Name           string         `yaml:"name"`
	Timeout        time.Duration  `yaml:"timeout"`
	MaxRetries     int            `yaml:"max_retries"`
	StructuredMode string         `yaml:"structured_mode"`
	MaxRepairs     int            `yaml:"max_repairs"`
	Groq           EndpointConfig `yaml:"groq,omitempty"`
	OpenRouter     EndpointConfig `yaml:"openrouter,omitempty"`
}

// EndpointConfig overrides the built-in endpoint of one provider.
// APIKey is optional; the provider's environment variable is used when empty.
type EndpointConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	srv := server.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            srv.Addr,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
			CORSOrigins:     srv.CORSOrigins,
			Metrics:         srv.ExposeMetrics,
		},
		Provider: ProviderConfig{
			Timeout:        buddy.DefaultTimeout,
			MaxRetries:     2,
			StructuredMode: string(buddy.StructuredJSONObject),
			MaxRepairs:     buddy.MaxDiagramRepairs,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logger.FormatAuto,
		},
		Generation: buddy.DefaultGeneration(),
	}
}

// ConfigDir returns the .buddy directory under dir.
func ConfigDir(dir string) string {
	return filepath.Join(dir, configDirName)
}

// ConfigPath returns the config file path under dir.
func ConfigPath(dir string) string {
	return filepath.Join(ConfigDir(dir), configFileName)
}

// LoadConfig reads the config file over the defaults and applies
// environment overrides.
//
// With an empty path, ./.buddy/config.yaml is used if it exists and the
// defaults otherwise. An explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	return loadConfig(path, os.Getenv)
}

func loadConfig(path string, getenv func(string) string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user configuration
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv lets the environment override the file.
// BUDDY_ADDR wins over PORT.
func (c *Config) applyEnv(getenv func(string) string) {
	if addr := strings.TrimSpace(getenv("BUDDY_ADDR")); addr != "" {
		c.Server.Addr = addr
	} else if port := strings.TrimSpace(getenv("PORT")); port != "" {
		c.Server.Addr = ":" + port
	}
	if level := strings.TrimSpace(getenv("BUDDY_LOG_LEVEL")); level != "" {
		c.Log.Level = level
	}
	if name := strings.TrimSpace(getenv(llm.SelectorEnv)); name != "" {
		c.Provider.Name = name
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if !logger.ValidFormat(c.Log.Format) {
		return fmt.Errorf("log.format: unknown format %q (supported: auto, json, console)", c.Log.Format)
	}
	if _, err := buddy.ParseStructuredMode(c.Provider.StructuredMode); err != nil {
		return fmt.Errorf("provider.structured_mode: %w", err)
	}
	if c.Provider.MaxRetries < 0 {
		return fmt.Errorf("provider.max_retries must be >= 0, got %d", c.Provider.MaxRetries)
	}
	if c.Provider.MaxRepairs < 0 {
		return fmt.Errorf("provider.max_repairs must be >= 0, got %d", c.Provider.MaxRepairs)
	}
	if c.Provider.Timeout <= 0 {
		return fmt.Errorf("provider.timeout must be positive, got %s", c.Provider.Timeout)
	}
	return nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// GatewayConfig maps the provider section for llm.NewGateway.
// max_retries: 0 disables retries.
func (c *Config) GatewayConfig() llm.GatewayConfig {
	retries := c.Provider.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return llm.GatewayConfig{
		Selector:   c.Provider.Name,
		Groq:       llm.Endpoint(c.Provider.Groq),
		OpenRouter: llm.Endpoint(c.Provider.OpenRouter),
		Timeout:    c.Provider.Timeout,
		MaxRetries: retries,
	}
}

// ServerConfig maps the server section for server.New.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:            c.Server.Addr,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		CORSOrigins:     c.Server.CORSOrigins,
		ExposeMetrics:   c.Server.Metrics,
	}
}

// Catalog returns the built-in stories plus the configured ones.
// Configured stories replace built-ins with the same id.
func (c *Config) Catalog() *prompt.Catalog {
	cat := prompt.DefaultCatalog()
	for id, s := range c.Stories {
		cat.Add(id, s)
	}
	return cat
}
