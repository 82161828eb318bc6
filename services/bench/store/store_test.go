// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/attempt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRun(id string) *Run {
	return &Run{
		ID:               id,
		Provider:         "anthropic",
		Model:            "claude-test",
		RunType:          "official",
		BenchmarkVersion: "0.3.0",
		Config:           map[string]any{"phase-mode": "three-phase"},
		StartedAt:        time.Now(),
	}
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, newTestRun("run-1")))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, "three-phase", run.Config["phase-mode"])
	assert.Nil(t, run.Score)

	result := &api.CompleteRunResponse{
		RunTime: "3 minutes",
		Score:   api.Score{Numerator: 2, Denominator: 3},
		Percent: 66.7,
	}
	require.NoError(t, s.SaveRunResult(ctx, "run-1", result, 41))

	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, run.Status)
	require.NotNil(t, run.Score)
	assert.Equal(t, 2, run.Score.Numerator)
	assert.Equal(t, 41, run.TotalAPICalls)
	assert.Equal(t, "3 minutes", run.RunTime)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunFailureAndResume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, newTestRun("run-1")))

	info := &FailureInfo{
		Error:            "provider rate limited past ceiling",
		CurrentAttemptID: "a2",
		AllAttempts: []api.AttemptSpec{
			{AttemptID: "a1", ArgSpec: []string{"integer"}, TestLimit: 10},
			{AttemptID: "a2", ArgSpec: []string{"string"}, TestLimit: 10},
		},
	}
	require.NoError(t, s.SaveRunFailure(ctx, "run-1", info))

	failed, err := s.GetFailedRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, failed.FailureInfo)
	assert.Equal(t, "a2", failed.FailureInfo.CurrentAttemptID)
	require.Len(t, failed.FailureInfo.AllAttempts, 2)
	assert.Equal(t, []string{"string"}, failed.FailureInfo.AllAttempts[1].ArgSpec)

	// completing clears the failure state
	require.NoError(t, s.SaveRunResult(ctx, "run-1", &api.CompleteRunResponse{
		Score: api.Score{Numerator: 1, Denominator: 2},
	}, 10))

	_, err = s.GetFailedRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, newTestRun("run-1")))

	a1 := &attempt.Attempt{
		ID: "a1", Provider: "anthropic", Model: "claude-test",
		Mode: attempt.ModeTwoPhase, Outcome: attempt.OutcomeCorrect,
		ToolCalls: 4, ProviderCalls: 6, InputTokens: 900, OutputTokens: 300,
		StartedAt: time.Now(), FinishedAt: time.Now(),
	}
	a2 := &attempt.Attempt{
		ID: "a2", Provider: "anthropic", Model: "claude-test",
		Mode: attempt.ModeTwoPhase, Outcome: attempt.OutcomeAborted,
		Forced: true, FailureReason: "retry ceiling exceeded",
		StartedAt: time.Now(), FinishedAt: time.Now(),
	}
	require.NoError(t, s.SaveAttempt(ctx, "run-1", a1, "--- user ---\nbegin\n"))
	require.NoError(t, s.SaveAttempt(ctx, "run-1", a2, ""))

	done, err := s.CompletedAttempts(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, done["a1"])
	assert.True(t, done["a2"])
	assert.False(t, done["a3"])

	records, err := s.ListAttempts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "verified-correct", records[0].Outcome)
	assert.Contains(t, records[0].Transcript, "begin")
	assert.True(t, records[1].Forced)
	assert.Equal(t, "retry ceiling exceeded", records[1].FailureReason)
}

func TestLabelAttempt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRun(ctx, newTestRun("run-1")))
	a := &attempt.Attempt{
		ID: "a1", Mode: attempt.ModeTwoPhase, Outcome: attempt.OutcomeIncorrect,
		StartedAt: time.Now(), FinishedAt: time.Now(),
	}
	require.NoError(t, s.SaveAttempt(ctx, "run-1", a, ""))

	require.NoError(t, s.LabelAttempt(ctx, "run-1", "a1", "off-by-one"))
	records, err := s.ListAttempts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "off-by-one", records[0].Label)

	err = s.LabelAttempt(ctx, "run-1", "nope", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	early := newTestRun("run-1")
	early.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateRun(ctx, early))
	require.NoError(t, s.CreateRun(ctx, newTestRun("run-2")))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}
