// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownProvider indicates the requested provider name is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Settings carries everything needed to construct a vendor adapter.
//
// The same orchestrator runs against every provider; provider and phase mode
// are configuration, never separate code paths.
type Settings struct {
	// Provider selects the adapter: "openai", "anthropic", "google",
	// "xai", "deepseek", or "fireworks".
	Provider string

	// Model is the vendor model identifier.
	Model string

	// APIKey is the vendor credential.
	APIKey string

	// BaseURL overrides the vendor endpoint. Empty uses the vendor default;
	// the OpenAI-compatible providers set their own defaults here.
	BaseURL string

	// MaxTokens is the default response budget per request.
	MaxTokens int

	// Temperature overrides sampling temperature when non-nil.
	Temperature *float32
}

// OpenAI-compatible vendor endpoints. These providers all speak the OpenAI
// chat-completions wire format and share one adapter.
const (
	xaiBaseURL       = "https://api.x.ai/v1"
	deepseekBaseURL  = "https://api.deepseek.com/v1"
	fireworksBaseURL = "https://api.fireworks.ai/inference/v1"
)

// New constructs the adapter for the configured provider.
//
// Inputs:
//
//	ctx - Context for adapter construction (the Google SDK dials eagerly).
//	cfg - Provider settings.
//
// Outputs:
//
//	Adapter - The configured adapter.
//	error - ErrUnknownProvider for unrecognized names.
func New(ctx context.Context, cfg Settings) (Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key for %q", ErrAuth, cfg.Provider)
	}

	switch cfg.Provider {
	case "openai":
		return newOpenAIAdapter(cfg.Provider, cfg), nil
	case "xai":
		cfg.BaseURL = orDefault(cfg.BaseURL, xaiBaseURL)
		return newOpenAIAdapter(cfg.Provider, cfg), nil
	case "deepseek":
		cfg.BaseURL = orDefault(cfg.BaseURL, deepseekBaseURL)
		return newOpenAIAdapter(cfg.Provider, cfg), nil
	case "fireworks":
		cfg.BaseURL = orDefault(cfg.BaseURL, fireworksBaseURL)
		return newOpenAIAdapter(cfg.Provider, cfg), nil
	case "anthropic":
		return newAnthropicAdapter(cfg), nil
	case "google":
		return newGoogleAdapter(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
