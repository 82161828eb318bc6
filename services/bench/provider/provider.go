// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package provider defines the canonical tool-calling contract between the
// attempt orchestrator and the model vendors.
//
// The orchestrator only ever speaks the canonical shape: a system prompt, an
// ordered message history, and a tool schema go in; an assistant message,
// zero or more requested tool calls, and a stop reason come out. Everything
// vendor-specific (message alternation rules, tool-schema encoding, error
// surfaces) lives inside the adapter implementations and never leaks out.
//
// Thread Safety:
//
//	Adapters must be safe for concurrent use; a single adapter instance may
//	serve several attempts at once.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies who produced a transcript message.
type Role string

const (
	// RoleSystem is the benchmark's standing instruction.
	RoleSystem Role = "system"

	// RoleUser carries benchmark prompts and verification inputs.
	RoleUser Role = "user"

	// RoleAssistant is a model turn, possibly carrying tool calls.
	RoleAssistant Role = "assistant"

	// RoleTool carries the result of exactly one resolved tool call.
	RoleTool Role = "tool"
)

// ToolCall is a model-issued request to invoke a named tool.
//
// The ID is assigned by the vendor and must be echoed back verbatim on the
// matching result so the vendor can pair the two.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// ToolResult is the resolved outcome of a single tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message is one canonical transcript entry.
//
// Assistant messages may carry ToolCalls; tool messages carry exactly one
// ToolResult. Other combinations are invalid and adapters may reject them.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// Parameter describes one named argument of a tool, in declaration order.
//
// Type uses JSON-schema primitive names ("string", "integer", "number",
// "boolean").
type Parameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ToolDefinition describes a tool the model may call this turn.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// SchemaProperties renders the ordered parameter list as a JSON-schema
// properties map. Shared by adapters that encode tools as JSON schema.
func (d ToolDefinition) SchemaProperties() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		props[p.Name] = map[string]any{"type": p.Type}
	}
	return props
}

// RequiredParameters returns the parameter names in declaration order.
func (d ToolDefinition) RequiredParameters() []string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

// Request is the canonical completion request.
type Request struct {
	// System is the system prompt, kept out of Messages because vendors
	// disagree about where it goes.
	System string

	// Messages is the canonical transcript. It must already satisfy the
	// no-dangling-tool-call invariant: every assistant tool call has a
	// matching tool-result message before the end of the slice.
	Messages []Message

	// Tools lists every tool the model may call this turn. Empty means the
	// model must answer in text.
	Tools []ToolDefinition

	// MaxTokens bounds the response length. Zero means adapter default.
	MaxTokens int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float32
}

// Response is the canonical completion response.
type Response struct {
	// Message is the assistant turn, including any requested tool calls.
	Message Message

	// StopReason is the vendor's reason normalized to one of
	// "end", "tool_use", "max_tokens", or "other".
	StopReason string

	InputTokens  int
	OutputTokens int
}

// HasToolCalls reports whether the response requests any tool calls.
func (r *Response) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// Adapter is the capability interface each vendor implements.
//
// Send must be side-effect free beyond the remote call itself so the
// orchestrator can retry it safely.
type Adapter interface {
	// Send translates the canonical request into a vendor call and
	// normalizes the reply. Errors are classified with the sentinel errors
	// in this package so the orchestrator can pick a retry strategy without
	// knowing the vendor.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider name (e.g. "openai", "anthropic").
	Name() string

	// Model returns the model identifier in use.
	Model() string
}

// Sentinel errors classifying adapter failures.
//
// Adapters wrap vendor errors with exactly one of these so callers can use
// errors.Is without depending on vendor SDK error types.
var (
	// ErrRateLimited marks HTTP 429 and equivalent throttling. Retryable.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrTransient marks 5xx and network-level failures. Retryable.
	ErrTransient = errors.New("transient provider error")

	// ErrInvalidRequest marks 4xx rejections of the request shape. This
	// indicates a canonicalization bug; the attempt must abort rather than
	// retry into the same wall.
	ErrInvalidRequest = errors.New("provider rejected request")

	// ErrAuth marks credential failures. Fatal to the whole run.
	ErrAuth = errors.New("provider authentication failed")
)

// IsRetryable reports whether the error is worth retrying with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// IsFatal reports whether the error should abort the whole run, not just
// the current attempt.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}

// classifyStatus wraps err with the sentinel matching an HTTP status code.
func classifyStatus(provider string, status int, err error) error {
	switch {
	case status == 429:
		return fmt.Errorf("%w: %s: %v", ErrRateLimited, provider, err)
	case status >= 500:
		return fmt.Errorf("%w: %s: %v", ErrTransient, provider, err)
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %s: %v", ErrAuth, provider, err)
	case status >= 400:
		return fmt.Errorf("%w: %s: %v", ErrInvalidRequest, provider, err)
	default:
		return fmt.Errorf("%w: %s: %v", ErrTransient, provider, err)
	}
}
