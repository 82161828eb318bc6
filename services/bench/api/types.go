// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import "encoding/json"

// StartRunRequest opens a run. Exactly one of ProblemSet or ExistingRunID
// is set.
type StartRunRequest struct {
	ClientID           string `json:"client-id"`
	ProblemSet         string `json:"problem-set,omitempty"`
	ExistingRunID      string `json:"existing-run-id,omitempty"`
	Subset             string `json:"subset,omitempty"`
	AttemptsPerProblem int    `json:"attempts-per-problem,omitempty"`
}

// AttemptSpec describes one problem the server wants attempted.
type AttemptSpec struct {
	AttemptID string `json:"attempt-id"`

	// ArgSpec is the positional list of JSON-schema type names the hidden
	// function takes, e.g. ["integer", "string"].
	ArgSpec []string `json:"arg-spec"`

	// TestLimit caps how many times the hidden function may be probed.
	TestLimit int `json:"test-limit"`
}

// StartRunResponse is the server's answer to start-run.
type StartRunResponse struct {
	RunID            string        `json:"run-id"`
	RunType          string        `json:"run-type"`
	BenchmarkVersion string        `json:"benchmark-version"`
	Attempts         []AttemptSpec `json:"attempts"`
}

// TestFunctionRequest probes the hidden function with positional args.
type TestFunctionRequest struct {
	AttemptID string `json:"attempt-id"`
	Args      []any  `json:"args"`
}

// TestFunctionResponse carries the hidden function's output, or an error
// message when the probe was rejected.
type TestFunctionResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// NextVerificationRequest asks for the next verification case.
type NextVerificationRequest struct {
	AttemptID string `json:"attempt-id"`
}

// NextVerificationResponse is one verification case. A nil Inputs slice
// means no cases remain.
type NextVerificationResponse struct {
	Inputs     []any  `json:"next-verification"`
	OutputType string `json:"output-type"`
}

// AttemptVerificationRequest submits the model's predicted output.
type AttemptVerificationRequest struct {
	AttemptID  string `json:"attempt-id"`
	Prediction any    `json:"prediction"`
}

// Verification statuses returned by attempt-verification.
const (
	VerificationCorrect = "correct"
	VerificationWrong   = "wrong"
	VerificationDone    = "done"
)

// AttemptVerificationResponse reports whether the prediction matched.
type AttemptVerificationResponse struct {
	Status string `json:"status"`
}

// Score is the run's final fraction.
type Score struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// CompleteRunResponse is the server's final accounting for a run.
type CompleteRunResponse struct {
	RunTime      string   `json:"run-time"`
	Score        Score    `json:"score"`
	Percent      float64  `json:"percent"`
	ProblemNames []string `json:"problem-names"`
}

// ProblemSetEntry names one selectable problem set.
type ProblemSetEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ProblemSetsResponse groups available problem sets by category.
type ProblemSetsResponse struct {
	ProblemSets map[string][]ProblemSetEntry `json:"problem-sets"`
}

// ResetAttemptRequest rewinds a single attempt so it can be retried.
type ResetAttemptRequest struct {
	AttemptID string `json:"attempt-id"`
}
