// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"context"
	"sync"
	"time"
)

// MockAdapter is a scripted adapter for testing.
//
// Thread Safety:
//
//	MockAdapter is safe for concurrent use.
type MockAdapter struct {
	mu sync.RWMutex

	// name is the provider name.
	name string

	// model is the model name.
	model string

	// responses are queued responses to return in order.
	responses []*Response

	// defaultResponse is returned when no queued responses remain.
	defaultResponse *Response

	// calls records every request passed to Send.
	calls []SendCall

	// responseFunc allows dynamic response generation.
	responseFunc func(*Request) (*Response, error)

	// errs are queued errors; a nil entry means use the next response.
	errs []error
}

// SendCall records a call to Send.
type SendCall struct {
	Request   *Request
	Timestamp time.Time
}

// NewMockAdapter creates a new mock adapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		name:  "mock",
		model: "mock-model",
		defaultResponse: &Response{
			Message:      Message{Role: RoleAssistant, Content: "mock response"},
			StopReason:   "end",
			InputTokens:  50,
			OutputTokens: 50,
		},
	}
}

// WithName sets the provider name.
func (m *MockAdapter) WithName(name string) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// WithModel sets the model name.
func (m *MockAdapter) WithModel(model string) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
	return m
}

// WithResponseFunc sets a dynamic response function. It takes precedence
// over queued responses.
func (m *MockAdapter) WithResponseFunc(f func(*Request) (*Response, error)) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFunc = f
	return m
}

// QueueResponse appends a response to the script.
func (m *MockAdapter) QueueResponse(resp *Response) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, nil)
	return m
}

// QueueError appends an error to the script; the matching Send call fails.
func (m *MockAdapter) QueueError(err error) *MockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
	return m
}

// QueueToolCall is a convenience for scripting an assistant turn that
// requests a single tool call.
func (m *MockAdapter) QueueToolCall(id, name, arguments string) *MockAdapter {
	return m.QueueResponse(&Response{
		Message: Message{
			Role:      RoleAssistant,
			ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: arguments}},
		},
		StopReason: "tool_use",
	})
}

// QueueText is a convenience for scripting a plain assistant text turn.
func (m *MockAdapter) QueueText(content string) *MockAdapter {
	return m.QueueResponse(&Response{
		Message:    Message{Role: RoleAssistant, Content: content},
		StopReason: "end",
	})
}

// Send implements Adapter.
func (m *MockAdapter) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, SendCall{Request: req, Timestamp: time.Now()})

	if m.responseFunc != nil {
		return m.responseFunc(req)
	}
	if len(m.responses) > 0 {
		resp, err := m.responses[0], m.errs[0]
		m.responses = m.responses[1:]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return m.defaultResponse, nil
}

// Name implements Adapter.
func (m *MockAdapter) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

// Model implements Adapter.
func (m *MockAdapter) Model() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model
}

// Calls returns a copy of all recorded calls.
func (m *MockAdapter) Calls() []SendCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Send invocations.
func (m *MockAdapter) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, or nil when none were made.
func (m *MockAdapter) LastRequest() *Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

var _ Adapter = (*MockAdapter)(nil)
