// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"

	anthropicDefaultMaxTokens = 4096
)

// --- Wire types ---

type anthropicRequest struct {
	Model     string                `json:"model"`
	Messages  []anthropicMessage    `json:"messages"`
	System    string                `json:"system,omitempty"`
	MaxTokens int                   `json:"max_tokens"`
	Tools     []anthropicToolDef    `json:"tools,omitempty"`

	Temperature *float32 `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

// anthropicBlock is a tagged union; exactly the fields for Type are set.
type anthropicBlock struct {
	Type string `json:"type"`

	// type == "text"
	Text string `json:"text,omitempty"`

	// type == "tool_use"
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// type == "tool_result"
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicToolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Role       string           `json:"role"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// --- Adapter ---

// anthropicAdapter is a hand-rolled client for the Anthropic messages API.
type anthropicAdapter struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature *float32
}

func newAnthropicAdapter(cfg Settings) *anthropicAdapter {
	slog.Info("Initializing Anthropic adapter", "model", cfg.Model)

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	return &anthropicAdapter{
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		baseURL:     orDefault(cfg.BaseURL, anthropicBaseURL),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Send implements Adapter.
func (a *anthropicAdapter) Send(ctx context.Context, req *Request) (*Response, error) {
	payload := anthropicRequest{
		Model:       a.model,
		Messages:    a.encodeMessages(req.Messages),
		System:      req.System,
		MaxTokens:   a.maxTokens,
		Tools:       a.encodeTools(req.Tools),
		Temperature: a.temperature,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		payload.Temperature = req.Temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: marshal request: %v", ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: anthropic: %v", ErrInvalidRequest, err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	httpReq.Header.Set("content-type", "application/json")

	slog.Debug("Sending request to Anthropic", "model", a.model, "messages", len(payload.Messages))

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: anthropic: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("anthropic", resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("%w: anthropic: decode response: %v", ErrTransient, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: anthropic: %s: %s", ErrTransient, parsed.Error.Type, parsed.Error.Message)
	}

	return a.decode(&parsed), nil
}

// Name implements Adapter.
func (a *anthropicAdapter) Name() string { return "anthropic" }

// Model implements Adapter.
func (a *anthropicAdapter) Model() string { return a.model }

// encodeMessages converts the canonical transcript to Anthropic's strict
// user/assistant alternation. Tool results ride in user messages as
// tool_result blocks; consecutive tool-result messages are folded into one
// user turn so the alternation holds.
func (a *anthropicAdapter) encodeMessages(messages []Message) []anthropicMessage {
	var out []anthropicMessage

	appendBlocks := func(role string, blocks []anthropicBlock) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropicMessage{Role: role, Content: blocks})
	}

	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			var blocks []anthropicBlock
			if m.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				input := json.RawMessage(call.Arguments)
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    call.ID,
					Name:  call.Name,
					Input: input,
				})
			}
			appendBlocks("assistant", blocks)
		case RoleTool:
			var blocks []anthropicBlock
			for _, res := range m.ToolResults {
				blocks = append(blocks, anthropicBlock{
					Type:      "tool_result",
					ToolUseID: res.ToolCallID,
					Content:   res.Content,
					IsError:   res.IsError,
				})
			}
			appendBlocks("user", blocks)
		default:
			// System prompts travel in the top-level system field; anything
			// else canonical becomes a user text block.
			appendBlocks("user", []anthropicBlock{{Type: "text", Text: m.Content}})
		}
	}
	return out
}

func (a *anthropicAdapter) encodeTools(defs []ToolDefinition) []anthropicToolDef {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]anthropicToolDef, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, anthropicToolDef{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": def.SchemaProperties(),
				"required":   def.RequiredParameters(),
			},
		})
	}
	return tools
}

func (a *anthropicAdapter) decode(parsed *anthropicResponse) *Response {
	out := &Response{
		Message:      Message{Role: RoleAssistant},
		StopReason:   normalizeAnthropicStop(parsed.StopReason),
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
	}
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			if out.Message.Content == "" {
				out.Message.Content = block.Text
			} else {
				out.Message.Content += "\n" + block.Text
			}
		case "tool_use":
			out.Message.ToolCalls = append(out.Message.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	return out
}

func normalizeAnthropicStop(reason string) string {
	switch reason {
	case "tool_use":
		return "tool_use"
	case "max_tokens":
		return "max_tokens"
	case "end_turn", "stop_sequence":
		return "end"
	default:
		return "other"
	}
}
