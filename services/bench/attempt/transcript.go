// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

// Transcript is the attempt's ordered conversation state.
//
// Turns are append-only between resets; Reset replaces the whole history
// and is only legal at a phase boundary with no tool calls outstanding.
// Every assistant tool call must receive a result before the next provider
// request, and the transcript is where that invariant is enforced.
//
// Thread Safety:
//
//	Transcript is safe for concurrent use. The orchestrator appends from
//	a single goroutine; readers (persistence, printing) may run alongside.
type Transcript struct {
	mu   sync.RWMutex
	msgs []provider.Message

	// resets counts how many times the history was replaced.
	resets int
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a user or assistant turn.
//
// Appending anything other than tool results while the last assistant turn
// has unresolved tool calls returns ErrDanglingToolCalls.
func (t *Transcript) Append(msg provider.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.Role != provider.RoleTool && len(t.pendingLocked()) > 0 {
		return fmt.Errorf("%w: cannot append %s turn", ErrDanglingToolCalls, msg.Role)
	}
	t.msgs = append(t.msgs, msg)
	return nil
}

// AppendResults resolves outstanding tool calls with one tool turn.
//
// Every pending call must be answered exactly once; partial resolution is
// rejected so a dangling call can never reach an adapter.
func (t *Transcript) AppendResults(results []provider.ToolResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.pendingLocked()
	if len(pending) == 0 {
		return fmt.Errorf("%w: no calls to resolve", ErrDanglingToolCalls)
	}
	byID := make(map[string]bool, len(results))
	for _, r := range results {
		if byID[r.ToolCallID] {
			return fmt.Errorf("%w: call %s answered twice", ErrDanglingToolCalls, r.ToolCallID)
		}
		byID[r.ToolCallID] = true
	}
	known := make(map[string]bool, len(pending))
	for _, call := range pending {
		known[call.ID] = true
		if !byID[call.ID] {
			return fmt.Errorf("%w: call %s unanswered", ErrDanglingToolCalls, call.ID)
		}
	}
	for _, r := range results {
		if !known[r.ToolCallID] {
			return fmt.Errorf("%w: result %s matches no call", ErrDanglingToolCalls, r.ToolCallID)
		}
	}

	t.msgs = append(t.msgs, provider.Message{Role: provider.RoleTool, ToolResults: results})
	return nil
}

// Pending returns the tool calls of the last assistant turn that have not
// yet been resolved.
func (t *Transcript) Pending() []provider.ToolCall {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pendingLocked()
}

func (t *Transcript) pendingLocked() []provider.ToolCall {
	if len(t.msgs) == 0 {
		return nil
	}
	last := t.msgs[len(t.msgs)-1]
	if last.Role != provider.RoleAssistant {
		return nil
	}
	return last.ToolCalls
}

// Reset discards the history and seeds it with the given turns.
//
// Only legal with no tool calls outstanding; the three-phase transition
// into verification is the one caller.
func (t *Transcript) Reset(seed []provider.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pendingLocked()) > 0 {
		return fmt.Errorf("%w: cannot reset", ErrDanglingToolCalls)
	}
	t.msgs = append([]provider.Message(nil), seed...)
	t.resets++
	return nil
}

// Messages returns a copy of the history, in order.
func (t *Transcript) Messages() []provider.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]provider.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Resets returns how many times the history was replaced.
func (t *Transcript) Resets() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resets
}

// LastAssistant returns the content of the most recent assistant turn.
func (t *Transcript) LastAssistant() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.msgs) - 1; i >= 0; i-- {
		if t.msgs[i].Role == provider.RoleAssistant {
			return t.msgs[i].Content
		}
	}
	return ""
}

// Render prints the transcript for logs and stored analysis.
func (t *Transcript) Render() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	for _, m := range t.msgs {
		fmt.Fprintf(&b, "--- %s ---\n", m.Role)
		if m.Content != "" {
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		for _, call := range m.ToolCalls {
			fmt.Fprintf(&b, "[tool call %s: %s(%s)]\n", call.ID, call.Name, call.Arguments)
		}
		for _, res := range m.ToolResults {
			marker := ""
			if res.IsError {
				marker = " error"
			}
			fmt.Fprintf(&b, "[tool result %s%s: %s]\n", res.ToolCallID, marker, res.Content)
		}
	}
	return b.String()
}
