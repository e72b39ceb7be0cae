// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading, default
// application, and validation for the brainstorm coordination service.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hjson/hjson-go/v4"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `json:"server"`
	State   StateConfig   `json:"state"`
	Browser BrowserConfig `json:"browser"`
	Probe   ProbeConfig   `json:"probe"`
	Session SessionConfig `json:"session"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig configures the per-session HTTP+WebSocket listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"` // 0 means ephemeral
}

// StateConfig configures branch-state persistence.
type StateConfig struct {
	Dir   string `json:"dir"`
	Watch bool   `json:"watch"`
}

// BrowserConfig configures the browser launcher.
type BrowserConfig struct {
	Skip    bool   `json:"skip"`
	Command string `json:"command"` // overrides platform auto-detect when set
}

// ProbeConfig configures branch-completion behavior.
type ProbeConfig struct {
	Kind                string `json:"kind"` // "rules" (default) or "llm"
	MaxAnswersPerBranch int    `json:"max_answers_per_branch"`
}

// SessionConfig configures orchestrator timeouts and loop bounds.
type SessionConfig struct {
	DefaultTimeoutMs int `json:"default_timeout_ms"`
	ReviewTimeoutMs  int `json:"review_timeout_ms"`
	MaxIterations    int `json:"max_iterations"`
}

// LoggingConfig holds the logging settings. They are loaded and
// defaulted, but nothing in the service reads them: all log output goes
// through the standard log package regardless of level or format.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Loader reads and parses HJSON configuration files.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from path.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with defaults applied and validates it.
func (l *Loader) LoadWithDefaults(path string) (*Config, error) {
	cfg, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a fully-defaulted, already-validated Config, for
// callers that have no config file (e.g. the demo CLI with all flags).
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their documented
// defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = defaultStateDir()
	}
	if cfg.Probe.Kind == "" {
		cfg.Probe.Kind = "rules"
	}
	if cfg.Probe.MaxAnswersPerBranch == 0 {
		cfg.Probe.MaxAnswersPerBranch = 3
	}
	if cfg.Session.DefaultTimeoutMs == 0 {
		cfg.Session.DefaultTimeoutMs = 300_000
	}
	if cfg.Session.ReviewTimeoutMs == 0 {
		cfg.Session.ReviewTimeoutMs = 600_000
	}
	if cfg.Session.MaxIterations == 0 {
		cfg.Session.MaxIterations = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brainloom/state"
	}
	return home + "/.brainloom/state"
}
