// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
base-url: http://localhost:3000/api
database: runs.db
log-level: debug
phase-mode: two-phase
msg-limit: 25
concurrency: 3
rate-limit-rps: 0.5
providers:
  openai:
    model: gpt-test
    max-tokens: 4096
  anthropic:
    model: claude-test
    phase-mode: three-phase
    temperature: 0.3
`

const sampleCredentials = `
openai: sk-openai-test
anthropic: sk-ant-test
`

func writeFiles(t *testing.T, config, credentials string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	credsPath := filepath.Join(dir, "credentials.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(config), 0o644))
	require.NoError(t, os.WriteFile(credsPath, []byte(credentials), 0o600))
	return cfgPath, credsPath
}

func TestLoad(t *testing.T) {
	cfgPath, credsPath := writeFiles(t, sampleConfig, sampleCredentials)

	cfg, err := Load(cfgPath, credsPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000/api", cfg.BaseURL)
	assert.Equal(t, 25, cfg.MsgLimit)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.InDelta(t, 0.5, cfg.RateLimitRPS, 0.001)
}

func TestProviderSettings(t *testing.T) {
	cfgPath, credsPath := writeFiles(t, sampleConfig, sampleCredentials)
	cfg, err := Load(cfgPath, credsPath)
	require.NoError(t, err)

	settings, err := cfg.ProviderSettings("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", settings.Provider)
	assert.Equal(t, "claude-test", settings.Model)
	assert.Equal(t, "sk-ant-test", settings.APIKey)
	require.NotNil(t, settings.Temperature)
	assert.InDelta(t, 0.3, float64(*settings.Temperature), 0.001)

	_, err = cfg.ProviderSettings("mistral")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestPhaseModeFor(t *testing.T) {
	cfgPath, credsPath := writeFiles(t, sampleConfig, sampleCredentials)
	cfg, err := Load(cfgPath, credsPath)
	require.NoError(t, err)

	assert.Equal(t, "three-phase", cfg.PhaseModeFor("anthropic"))
	assert.Equal(t, "two-phase", cfg.PhaseModeFor("openai"))
	assert.Equal(t, "two-phase", cfg.PhaseModeFor("unknown"))
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"missing base url", "database: x\nproviders:\n  openai:\n    model: m\n"},
		{"bad phase mode", sampleConfig + "\nphase-mode: four-phase\n"},
		{"provider missing model", "base-url: http://x\ndatabase: d\nproviders:\n  openai: {}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath, credsPath := writeFiles(t, tt.config, sampleCredentials)
			_, err := Load(cfgPath, credsPath)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingCredentialsTolerated(t *testing.T) {
	cfgPath, _ := writeFiles(t, sampleConfig, sampleCredentials)

	cfg, err := Load(cfgPath, filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	settings, err := cfg.ProviderSettings("openai")
	require.NoError(t, err)
	assert.Empty(t, settings.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}
