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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limit", 429, ErrRateLimited},
		{"server error", 500, ErrTransient},
		{"overloaded", 529, ErrTransient},
		{"unauthorized", 401, ErrAuth},
		{"forbidden", 403, ErrAuth},
		{"bad request", 400, ErrInvalidRequest},
		{"not found", 404, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("test", tt.status, errors.New("boom"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(classifyStatus("x", 429, errors.New("limit"))))
	assert.True(t, IsRetryable(classifyStatus("x", 503, errors.New("down"))))
	assert.False(t, IsRetryable(classifyStatus("x", 400, errors.New("bad"))))
	assert.False(t, IsRetryable(classifyStatus("x", 401, errors.New("key"))))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(classifyStatus("x", 401, errors.New("key"))))
	assert.False(t, IsFatal(classifyStatus("x", 429, errors.New("limit"))))
}

func TestToolDefinitionSchema(t *testing.T) {
	def := ToolDefinition{
		Name: "mystery_function",
		Parameters: []Parameter{
			{Name: "a", Type: "integer"},
			{Name: "b", Type: "string"},
		},
	}

	props := def.SchemaProperties()
	require.Len(t, props, 2)
	assert.Equal(t, map[string]any{"type": "integer"}, props["a"])
	assert.Equal(t, map[string]any{"type": "string"}, props["b"])

	assert.Equal(t, []string{"a", "b"}, def.RequiredParameters())
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Settings{Provider: "nope", APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewMissingAPIKey(t *testing.T) {
	_, err := New(context.Background(), Settings{Provider: "openai"})
	assert.ErrorIs(t, err, ErrAuth)
}

func TestMockAdapterScript(t *testing.T) {
	mock := NewMockAdapter().
		QueueToolCall("call_1", "mystery_function", `{"a": 3}`).
		QueueText("the function doubles its input")

	ctx := context.Background()

	resp, err := mock.Send(ctx, &Request{})
	require.NoError(t, err)
	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "mystery_function", resp.Message.ToolCalls[0].Name)
	assert.Equal(t, "tool_use", resp.StopReason)

	resp, err = mock.Send(ctx, &Request{})
	require.NoError(t, err)
	assert.False(t, resp.HasToolCalls())
	assert.Equal(t, "the function doubles its input", resp.Message.Content)

	// script exhausted, default response
	resp, err = mock.Send(ctx, &Request{})
	require.NoError(t, err)
	assert.Equal(t, "end", resp.StopReason)

	assert.Equal(t, 3, mock.CallCount())
}

func TestMockAdapterQueuedError(t *testing.T) {
	boom := errors.New("boom")
	mock := NewMockAdapter().QueueError(boom).QueueText("ok")

	_, err := mock.Send(context.Background(), &Request{})
	assert.ErrorIs(t, err, boom)

	resp, err := mock.Send(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Message.Content)
}

func TestRateLimitedCounts(t *testing.T) {
	mock := NewMockAdapter()
	limited := NewRateLimited(mock, 0, 0)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := limited.Send(ctx, &Request{})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(5), limited.Calls())
	assert.Equal(t, "mock", limited.Name())
	assert.Equal(t, "mock-model", limited.Model())
}

func TestRateLimitedCancelledContext(t *testing.T) {
	mock := NewMockAdapter()
	limited := NewRateLimited(mock, 0.001, 1)

	ctx, cancel := context.WithCancel(context.Background())

	// first request consumes the burst token
	_, err := limited.Send(ctx, &Request{})
	require.NoError(t, err)

	cancel()
	_, err = limited.Send(ctx, &Request{})
	assert.Error(t, err)
}
