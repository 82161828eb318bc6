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
	"net"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// openAIAdapter speaks the OpenAI chat-completions wire format.
//
// It also serves xAI, DeepSeek, and Fireworks, which expose the same format
// behind different base URLs.
type openAIAdapter struct {
	client      *openai.Client
	provider    string
	model       string
	maxTokens   int
	temperature *float32
}

func newOpenAIAdapter(name string, cfg Settings) *openAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	slog.Info("Initializing OpenAI-compatible adapter",
		"provider", name,
		"model", cfg.Model,
		"base_url", clientCfg.BaseURL,
	)

	return &openAIAdapter{
		client:      openai.NewClientWithConfig(clientCfg),
		provider:    name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Send implements Adapter.
func (a *openAIAdapter) Send(ctx context.Context, req *Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: a.encodeMessages(req),
		Tools:    a.encodeTools(req.Tools),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.MaxTokens
	} else if a.maxTokens > 0 {
		chatReq.MaxCompletionTokens = a.maxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	} else if a.temperature != nil {
		chatReq.Temperature = *a.temperature
	}

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, a.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s returned no choices", ErrTransient, a.provider)
	}

	choice := resp.Choices[0]
	out := &Response{
		Message: Message{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		},
		StopReason:   normalizeFinishReason(choice.FinishReason),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, call := range choice.Message.ToolCalls {
		out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out, nil
}

// Name implements Adapter.
func (a *openAIAdapter) Name() string { return a.provider }

// Model implements Adapter.
func (a *openAIAdapter) Model() string { return a.model }

// encodeMessages translates the canonical transcript. Tool-result messages
// become role "tool" messages keyed by the tool call id, which is the
// alternation this wire format expects.
func (a *openAIAdapter) encodeMessages(req *Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleAssistant:
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, call := range m.ToolCalls {
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				})
			}
			msgs = append(msgs, out)
		case RoleTool:
			for _, res := range m.ToolResults {
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    res.Content,
					ToolCallID: res.ToolCallID,
				})
			}
		case RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			})
		default:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		}
	}
	return msgs
}

func (a *openAIAdapter) encodeTools(defs []ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters: map[string]any{
					"type":       string(jsonschema.Object),
					"properties": def.SchemaProperties(),
					"required":   def.RequiredParameters(),
				},
			},
		})
	}
	return tools
}

// classify maps SDK errors onto the package sentinels.
func (a *openAIAdapter) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(a.provider, apiErr.HTTPStatusCode, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(a.provider, reqErr.HTTPStatusCode, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %s: %v", ErrTransient, a.provider, err)
	}

	return fmt.Errorf("%w: %s: %v", ErrTransient, a.provider, err)
}

func normalizeFinishReason(reason openai.FinishReason) string {
	switch reason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return "tool_use"
	case openai.FinishReasonLength:
		return "max_tokens"
	case openai.FinishReasonStop:
		return "end"
	default:
		return "other"
	}
}
