// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIEncodeMessages(t *testing.T) {
	adapter := newOpenAIAdapter("openai", Settings{Model: "gpt-test", APIKey: "k"})

	msgs := adapter.encodeMessages(&Request{
		System: "investigate",
		Messages: []Message{
			{Role: RoleUser, Content: "begin"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "call_1", Name: "mystery_function", Arguments: `{"a": 1}`},
			}},
			{Role: RoleTool, ToolResults: []ToolResult{
				{ToolCallID: "call_1", Content: "[2]"},
			}},
			{Role: RoleAssistant, Content: "it doubles"},
		},
	})

	require.Len(t, msgs, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)

	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, "mystery_function", msgs[2].ToolCalls[0].Function.Name)

	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, "[2]", msgs[3].Content)

	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[4].Role)
	assert.Equal(t, "it doubles", msgs[4].Content)
}

func TestOpenAIEncodeTools(t *testing.T) {
	adapter := newOpenAIAdapter("openai", Settings{Model: "gpt-test", APIKey: "k"})

	tools := adapter.encodeTools([]ToolDefinition{{
		Name:        "mystery_function",
		Description: "Call the function under test.",
		Parameters:  []Parameter{{Name: "a", Type: "integer"}, {Name: "b", Type: "boolean"}},
	}})

	require.Len(t, tools, 1)
	assert.Equal(t, openai.ToolTypeFunction, tools[0].Type)
	assert.Equal(t, "mystery_function", tools[0].Function.Name)

	params, ok := tools[0].Function.Parameters.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"a", "b"}, params["required"])
}

func TestNormalizeFinishReason(t *testing.T) {
	assert.Equal(t, "tool_use", normalizeFinishReason(openai.FinishReasonToolCalls))
	assert.Equal(t, "max_tokens", normalizeFinishReason(openai.FinishReasonLength))
	assert.Equal(t, "end", normalizeFinishReason(openai.FinishReasonStop))
	assert.Equal(t, "other", normalizeFinishReason(openai.FinishReasonContentFilter))
}
