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
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// googleAdapter drives Gemini models through the langchaingo googleai client.
type googleAdapter struct {
	client      *googleai.GoogleAI
	model       string
	maxTokens   int
	temperature *float32
}

func newGoogleAdapter(ctx context.Context, cfg Settings) (*googleAdapter, error) {
	slog.Info("Initializing Google adapter", "model", cfg.Model)

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: google: %v", ErrAuth, err)
	}

	return &googleAdapter{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Send implements Adapter.
func (a *googleAdapter) Send(ctx context.Context, req *Request) (*Response, error) {
	content := a.encodeMessages(req)

	opts := []llms.CallOption{llms.WithModel(a.model)}
	if tools := a.encodeTools(req.Tools); len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	} else if a.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(a.maxTokens))
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*req.Temperature)))
	} else if a.temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*a.temperature)))
	}

	resp, err := a.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, a.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: google returned no candidates", ErrTransient)
	}

	choice := resp.Choices[0]
	out := &Response{
		Message: Message{
			Role:    RoleAssistant,
			Content: choice.Content,
		},
		StopReason: normalizeGoogleStop(choice.StopReason, len(choice.ToolCalls) > 0),
	}
	for _, call := range choice.ToolCalls {
		args := "{}"
		if call.FunctionCall != nil && call.FunctionCall.Arguments != "" {
			args = call.FunctionCall.Arguments
		}
		name := ""
		if call.FunctionCall != nil {
			name = call.FunctionCall.Name
		}
		out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
			ID:        orDefault(call.ID, name),
			Name:      name,
			Arguments: args,
		})
	}
	if v, ok := choice.GenerationInfo["input_tokens"].(int); ok {
		out.InputTokens = v
	}
	if v, ok := choice.GenerationInfo["output_tokens"].(int); ok {
		out.OutputTokens = v
	}
	return out, nil
}

// Name implements Adapter.
func (a *googleAdapter) Name() string { return "google" }

// Model implements Adapter.
func (a *googleAdapter) Model() string { return a.model }

func (a *googleAdapter) encodeMessages(req *Request) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(req.Messages)+1)

	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			out := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Content != "" {
				out.Parts = append(out.Parts, llms.TextPart(m.Content))
			}
			for _, call := range m.ToolCalls {
				out.Parts = append(out.Parts, llms.ToolCall{
					ID:   call.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			msgs = append(msgs, out)
		case RoleTool:
			out := llms.MessageContent{Role: llms.ChatMessageTypeTool}
			for _, res := range m.ToolResults {
				out.Parts = append(out.Parts, llms.ToolCallResponse{
					ToolCallID: res.ToolCallID,
					Name:       res.ToolCallID,
					Content:    res.Content,
				})
			}
			msgs = append(msgs, out)
		case RoleSystem:
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		default:
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	return msgs
}

func (a *googleAdapter) encodeTools(defs []ToolDefinition) []llms.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]llms.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters: map[string]any{
					"type":       "object",
					"properties": def.SchemaProperties(),
					"required":   def.RequiredParameters(),
				},
			},
		})
	}
	return tools
}

// classify maps client errors onto the package sentinels. The googleai client
// does not expose typed errors, so we fall back to message sniffing for the
// retryable cases.
func (a *googleAdapter) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("%w: google: %v", ErrRateLimited, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "PERMISSION_DENIED") || strings.Contains(msg, "API key"):
		return fmt.Errorf("%w: google: %v", ErrAuth, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "INVALID_ARGUMENT"):
		return fmt.Errorf("%w: google: %v", ErrInvalidRequest, err)
	default:
		return fmt.Errorf("%w: google: %v", ErrTransient, err)
	}
}

func normalizeGoogleStop(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_use"
	}
	switch strings.ToUpper(reason) {
	case "STOP":
		return "end"
	case "MAX_TOKENS":
		return "max_tokens"
	default:
		return "other"
	}
}

// compile-time checks that every adapter satisfies the contract
var (
	_ Adapter = (*openAIAdapter)(nil)
	_ Adapter = (*anthropicAdapter)(nil)
	_ Adapter = (*googleAdapter)(nil)
)
