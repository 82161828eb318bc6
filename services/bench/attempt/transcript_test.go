// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

func TestTranscriptAppendOrder(t *testing.T) {
	tr := NewTranscript()

	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "begin"}))
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleAssistant, Content: "thinking"}))
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "go on"}))

	msgs := tr.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "begin", msgs[0].Content)
	assert.Equal(t, "go on", msgs[2].Content)
}

func TestTranscriptBlocksDanglingToolCalls(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(provider.Message{
		Role:      provider.RoleAssistant,
		ToolCalls: []provider.ToolCall{{ID: "c1", Name: "mystery_function"}},
	}))

	require.Len(t, tr.Pending(), 1)

	// user/assistant turns are rejected until the call is resolved
	err := tr.Append(provider.Message{Role: provider.RoleUser, Content: "next"})
	assert.ErrorIs(t, err, ErrDanglingToolCalls)

	err = tr.Reset(nil)
	assert.ErrorIs(t, err, ErrDanglingToolCalls)

	require.NoError(t, tr.AppendResults([]provider.ToolResult{{ToolCallID: "c1", Content: "4"}}))
	assert.Empty(t, tr.Pending())
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "next"}))
}

func TestTranscriptPartialResolutionRejected(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(provider.Message{
		Role: provider.RoleAssistant,
		ToolCalls: []provider.ToolCall{
			{ID: "c1", Name: "mystery_function"},
			{ID: "c2", Name: "mystery_function"},
		},
	}))

	err := tr.AppendResults([]provider.ToolResult{{ToolCallID: "c1", Content: "4"}})
	assert.ErrorIs(t, err, ErrDanglingToolCalls)

	require.NoError(t, tr.AppendResults([]provider.ToolResult{
		{ToolCallID: "c1", Content: "4"},
		{ToolCallID: "c2", Content: "6"},
	}))
}

func TestTranscriptStrayAndDuplicateResultsRejected(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(provider.Message{
		Role:      provider.RoleAssistant,
		ToolCalls: []provider.ToolCall{{ID: "c1", Name: "mystery_function"}},
	}))

	// a result for a call that was never made
	err := tr.AppendResults([]provider.ToolResult{
		{ToolCallID: "c1", Content: "4"},
		{ToolCallID: "c9", Content: "ghost"},
	})
	assert.ErrorIs(t, err, ErrDanglingToolCalls)

	// the same call answered twice
	err = tr.AppendResults([]provider.ToolResult{
		{ToolCallID: "c1", Content: "4"},
		{ToolCallID: "c1", Content: "4 again"},
	})
	assert.ErrorIs(t, err, ErrDanglingToolCalls)

	require.NoError(t, tr.AppendResults([]provider.ToolResult{{ToolCallID: "c1", Content: "4"}}))
}

func TestTranscriptResultsWithoutCallsRejected(t *testing.T) {
	tr := NewTranscript()
	err := tr.AppendResults([]provider.ToolResult{{ToolCallID: "c1"}})
	assert.ErrorIs(t, err, ErrDanglingToolCalls)
}

func TestTranscriptReset(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "begin"}))
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleAssistant, Content: "the function doubles"}))

	seed := provider.Message{Role: provider.RoleUser, Content: "summary: it doubles"}
	require.NoError(t, tr.Reset([]provider.Message{seed}))

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "summary: it doubles", msgs[0].Content)
	assert.Equal(t, 1, tr.Resets())
}

func TestTranscriptLastAssistant(t *testing.T) {
	tr := NewTranscript()
	assert.Empty(t, tr.LastAssistant())

	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "q"}))
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleAssistant, Content: "first"}))
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "q2"}))
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleAssistant, Content: "second"}))

	assert.Equal(t, "second", tr.LastAssistant())
}

func TestTranscriptRender(t *testing.T) {
	tr := NewTranscript()
	require.NoError(t, tr.Append(provider.Message{Role: provider.RoleUser, Content: "begin"}))
	require.NoError(t, tr.Append(provider.Message{
		Role:      provider.RoleAssistant,
		ToolCalls: []provider.ToolCall{{ID: "c1", Name: "mystery_function", Arguments: `{"a":1}`}},
	}))
	require.NoError(t, tr.AppendResults([]provider.ToolResult{{ToolCallID: "c1", Content: "2", IsError: false}}))

	out := tr.Render()
	assert.Contains(t, out, "--- user ---")
	assert.Contains(t, out, "mystery_function")
	assert.Contains(t, out, "tool result c1")
}
