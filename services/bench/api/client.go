// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api is the HTTP client for the benchmark server.
//
// The server speaks JSON with kebab-case keys. Every run-scoped request
// carries the run id so the server can associate probes and verifications
// with the right run.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrServer wraps non-2xx responses from the benchmark server.
var ErrServer = errors.New("benchmark server error")

// Client talks to one benchmark server.
//
// Thread Safety:
//
//	Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	runID      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRunID scopes the client to a run. Run-scoped endpoints include the
// id in every request body.
func WithRunID(runID string) Option {
	return func(c *Client) { c.runID = runID }
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForRun returns a copy of the client scoped to runID.
func (c *Client) ForRun(runID string) *Client {
	scoped := *c
	scoped.runID = runID
	return &scoped
}

// RunID returns the run this client is scoped to, if any.
func (c *Client) RunID() string { return c.runID }

// StartRun opens a new run or reattaches to an existing one.
func (c *Client) StartRun(ctx context.Context, req *StartRunRequest) (*StartRunResponse, error) {
	var resp StartRunResponse
	if err := c.post(ctx, "start-run", req, &resp); err != nil {
		return nil, err
	}
	slog.Info("Run started",
		"run_id", resp.RunID,
		"run_type", resp.RunType,
		"benchmark_version", resp.BenchmarkVersion,
		"attempts", len(resp.Attempts),
	)
	return &resp, nil
}

// TestFunction probes the hidden function with positional arguments.
func (c *Client) TestFunction(ctx context.Context, attemptID string, args []any) (*TestFunctionResponse, error) {
	var resp TestFunctionResponse
	err := c.post(ctx, "test-function", &TestFunctionRequest{AttemptID: attemptID, Args: args}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// NextVerification fetches the next verification case for the attempt.
// A nil response means no cases remain.
func (c *Client) NextVerification(ctx context.Context, attemptID string) (*NextVerificationResponse, error) {
	var resp NextVerificationResponse
	err := c.post(ctx, "next-verification", &NextVerificationRequest{AttemptID: attemptID}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Inputs == nil {
		return nil, nil
	}
	return &resp, nil
}

// AttemptVerification submits a prediction for the current verification
// case and returns the server's verdict.
func (c *Client) AttemptVerification(ctx context.Context, attemptID string, prediction any) (*AttemptVerificationResponse, error) {
	var resp AttemptVerificationResponse
	err := c.post(ctx, "attempt-verification",
		&AttemptVerificationRequest{AttemptID: attemptID, Prediction: prediction}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteRun closes the run and returns the final score.
func (c *Client) CompleteRun(ctx context.Context) (*CompleteRunResponse, error) {
	var resp CompleteRunResponse
	if err := c.post(ctx, "complete-run", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetAttempt rewinds an attempt on the server so it can be retried.
func (c *Client) ResetAttempt(ctx context.Context, attemptID string) error {
	return c.post(ctx, "developer/reset-attempt", &ResetAttemptRequest{AttemptID: attemptID}, nil)
}

// ProblemSets lists the problem sets the server offers.
func (c *Client) ProblemSets(ctx context.Context) (*ProblemSetsResponse, error) {
	var resp ProblemSetsResponse
	if err := c.get(ctx, "problem-sets", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post sends a JSON body to path and decodes the JSON reply into out.
// When the client is run-scoped the run id is injected into the body.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: marshal %s request: %w", path, err)
	}
	if c.runID != "" {
		payload, err = injectRunID(payload, c.runID)
		if err != nil {
			return fmt.Errorf("api: %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path, nil)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: %s: read response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: status %d: %s", ErrServer, path, resp.StatusCode, string(body))
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: %s: decode response: %w", path, err)
	}
	return nil
}

// injectRunID adds the run-id key to an encoded JSON object.
func injectRunID(payload []byte, runID string) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("inject run id: %w", err)
	}
	obj["run-id"] = runID
	return json.Marshal(obj)
}
