// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the client configuration and credentials.
//
// Configuration is split across two YAML files so credentials can stay out
// of version control: config.yaml holds everything shareable, and
// credentials.yaml holds API keys keyed by provider name.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

// ErrUnknownProvider indicates the requested provider has no configuration.
var ErrUnknownProvider = errors.New("provider not configured")

// Provider configures one vendor.
type Provider struct {
	// Model is the vendor model identifier.
	Model string `yaml:"model" validate:"required"`

	// BaseURL overrides the vendor endpoint.
	BaseURL string `yaml:"base-url"`

	// MaxTokens bounds each completion. Zero means adapter default.
	MaxTokens int `yaml:"max-tokens" validate:"gte=0"`

	// Temperature overrides sampling temperature when set.
	Temperature *float32 `yaml:"temperature"`

	// PhaseMode overrides the global phase mode for this provider.
	// Some vendors need the three-phase context reset to verify reliably.
	PhaseMode string `yaml:"phase-mode" validate:"omitempty,oneof=two-phase three-phase"`
}

// Config is the client configuration.
type Config struct {
	// BaseURL is the benchmark server endpoint.
	BaseURL string `yaml:"base-url" validate:"required,url"`

	// Database is the SQLite path for run storage.
	Database string `yaml:"database" validate:"required"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log-level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"log-dir"`

	// PhaseMode is the default context-management policy.
	PhaseMode string `yaml:"phase-mode" validate:"omitempty,oneof=two-phase three-phase"`

	// MsgLimit bounds assistant turns per phase.
	MsgLimit int `yaml:"msg-limit" validate:"gte=0"`

	// CorrectionBudget bounds correctable model mistakes per phase.
	CorrectionBudget int `yaml:"correction-budget" validate:"gte=0"`

	// Concurrency bounds parallel attempts.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`

	// RateLimitRPS is the client-side provider request rate. Zero
	// disables limiting.
	RateLimitRPS float64 `yaml:"rate-limit-rps" validate:"gte=0"`

	// Subset restricts the problem set server-side.
	Subset string `yaml:"subset"`

	// Providers configures each vendor by name.
	Providers map[string]Provider `yaml:"providers" validate:"required,dive"`

	// credentials maps provider name to API key. Loaded separately.
	credentials map[string]string
}

// Load reads and validates config.yaml and credentials.yaml.
//
// Inputs:
//
//	configPath - Path to config.yaml.
//	credentialsPath - Path to credentials.yaml; an empty path or a
//	                  missing file leaves every provider without a key.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Non-nil for unreadable files, YAML errors, or validation
//	        failures.
func Load(configPath, credentialsPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}

	if credentialsPath != "" {
		rawCreds, err := os.ReadFile(credentialsPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// commands that never talk to a vendor work without keys;
			// the adapter rejects empty keys when one is needed
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", credentialsPath, err)
		default:
			if err := yaml.Unmarshal(rawCreds, &cfg.credentials); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", credentialsPath, err)
			}
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// ProviderSettings assembles the adapter settings for one provider,
// merging its configuration with its credential.
func (c *Config) ProviderSettings(name string) (provider.Settings, error) {
	p, ok := c.Providers[name]
	if !ok {
		return provider.Settings{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return provider.Settings{
		Provider:    name,
		Model:       p.Model,
		APIKey:      c.credentials[name],
		BaseURL:     p.BaseURL,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}, nil
}

// PhaseModeFor returns the effective phase mode for a provider: its
// override if set, otherwise the global default, otherwise two-phase.
func (c *Config) PhaseModeFor(name string) string {
	if p, ok := c.Providers[name]; ok && p.PhaseMode != "" {
		return p.PhaseMode
	}
	if c.PhaseMode != "" {
		return c.PhaseMode
	}
	return "two-phase"
}
