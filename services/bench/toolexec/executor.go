// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package toolexec resolves model tool calls against the hidden function.
//
// The benchmark server describes the hidden function with a positional
// type list; models call tools with named arguments. This package owns the
// mapping between the two: positional slots get the names "a", "b", "c" ...
// in order, and named arguments are folded back into a positional list by
// sorting on the name.
package toolexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

// Sentinel errors for the executor.
var (
	// ErrBadArguments indicates the model supplied arguments that do not
	// match the function's schema.
	ErrBadArguments = errors.New("arguments do not match schema")

	// ErrProbeLimit indicates the probe budget for the attempt is spent.
	ErrProbeLimit = errors.New("probe limit reached")
)

// argNames yields the parameter names for positional slots.
// Slot 0 is "a", slot 25 is "z"; benchmark functions never take more.
func argNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	return names
}

// Schema renders a positional arg spec as named tool parameters.
func Schema(argSpec []string) []provider.Parameter {
	names := argNames(len(argSpec))
	params := make([]provider.Parameter, len(argSpec))
	for i, typ := range argSpec {
		params[i] = provider.Parameter{Name: names[i], Type: typ}
	}
	return params
}

// Executor probes one attempt's hidden function.
//
// Thread Safety:
//
//	Executor is safe for concurrent use, though a single attempt's loop
//	calls it sequentially.
type Executor struct {
	client    *api.Client
	attemptID string
	argSpec   []string
	limit     int
	timeout   time.Duration

	probes atomic.Int64
}

// NewExecutor creates an executor for one attempt.
//
// Inputs:
//
//	client - Run-scoped benchmark server client.
//	spec - The attempt's function description from start-run.
//
// Outputs:
//
//	*Executor - The configured executor.
func NewExecutor(client *api.Client, spec api.AttemptSpec) *Executor {
	return &Executor{
		client:    client,
		attemptID: spec.AttemptID,
		argSpec:   spec.ArgSpec,
		limit:     spec.TestLimit,
		timeout:   30 * time.Second,
	}
}

// Probes returns how many times the hidden function was called.
func (e *Executor) Probes() int { return int(e.probes.Load()) }

// Limit returns the attempt's probe budget. Zero means unlimited.
func (e *Executor) Limit() int { return e.limit }

// Run resolves one tool call against the hidden function.
//
// Failures the model can correct (bad argument names, spent probe budget,
// server-side rejection of the input) come back as error results, never as
// Go errors; the transcript must always receive a result for every call.
func (e *Executor) Run(ctx context.Context, call provider.ToolCall) provider.ToolResult {
	args, err := e.positionalArgs(call.Arguments)
	if err != nil {
		slog.Warn("Rejected tool call arguments", "attempt_id", e.attemptID, "error", err)
		return errorResult(call.ID, err.Error())
	}

	if e.limit > 0 && e.probes.Load() >= int64(e.limit) {
		return errorResult(call.ID, ErrProbeLimit.Error())
	}
	e.probes.Add(1)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.TestFunction(ctx, e.attemptID, args)
	if err != nil {
		slog.Warn("Probe failed", "attempt_id", e.attemptID, "error", err)
		return errorResult(call.ID, fmt.Sprintf("call failed: %v", err))
	}
	if resp.Error != "" {
		return errorResult(call.ID, resp.Error)
	}

	slog.Debug("Probed hidden function",
		"attempt_id", e.attemptID,
		"args", args,
		"output", string(resp.Output),
	)
	return provider.ToolResult{ToolCallID: call.ID, Content: string(resp.Output)}
}

// positionalArgs converts the model's named-argument JSON object into the
// positional list the server expects.
func (e *Executor) positionalArgs(raw string) ([]any, error) {
	var named map[string]any
	if err := json.Unmarshal([]byte(raw), &named); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", ErrBadArguments, err)
	}

	expected := argNames(len(e.argSpec))
	if len(named) != len(expected) {
		return nil, fmt.Errorf("%w: want %d arguments (%v), got %d",
			ErrBadArguments, len(expected), expected, len(named))
	}

	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, len(keys))
	for i, k := range keys {
		if k != expected[i] {
			return nil, fmt.Errorf("%w: unexpected argument %q, want %v", ErrBadArguments, k, expected)
		}
		args[i] = named[k]
	}
	return args, nil
}

func errorResult(callID, msg string) provider.ToolResult {
	return provider.ToolResult{ToolCallID: callID, Content: msg, IsError: true}
}
