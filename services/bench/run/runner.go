// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package run conducts whole benchmark runs: it opens a run with the
// server, fans the problems out to attempt orchestrators, persists every
// transcript, and closes the run for scoring. Interrupted runs leave
// resumable state in the store.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/attempt"
	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
	"github.com/sherlockbench/sherlockbench-go/services/bench/store"
	"github.com/sherlockbench/sherlockbench-go/services/bench/toolexec"
)

// ResumePolicy decides what happens to the attempt a failed run died on.
type ResumePolicy string

const (
	// ResumeSkip drops the failed attempt and finishes the rest.
	ResumeSkip ResumePolicy = "skip"

	// ResumeRetry rewinds the failed attempt on the server and tries it
	// again.
	ResumeRetry ResumePolicy = "retry"
)

// ErrNothingToResume indicates a resumed run has no attempts left.
var ErrNothingToResume = errors.New("no attempts left to resume")

// Options configures a Runner.
type Options struct {
	// Server is the unscoped benchmark server client.
	Server *api.Client

	// Store persists runs and transcripts.
	Store *store.Store

	// Provider configures the vendor adapter.
	Provider provider.Settings

	// Adapter overrides Provider when non-nil. Tests use this.
	Adapter provider.Adapter

	// Mode is the context-management policy for every attempt.
	Mode attempt.Mode

	// Concurrency bounds parallel attempts. Zero means 1.
	Concurrency int

	// Subset restricts the problem set server-side.
	Subset string

	// AttemptsPerProblem asks the server for repeated attempts.
	AttemptsPerProblem int

	// RequestsPerSecond is the client-side provider rate limit.
	// Zero disables limiting.
	RequestsPerSecond float64

	// MaxTurnsPerPhase and CorrectionBudget pass through to each
	// orchestrator; zero means the orchestrator defaults.
	MaxTurnsPerPhase int
	CorrectionBudget int

	// MaxTokens bounds each completion. Zero means adapter default.
	MaxTokens int
}

// Result is the final accounting for a run.
type Result struct {
	RunID        string
	RunType      string
	Score        api.Score
	Percent      float64
	RunTime      string
	ProblemNames []string
	Attempts     []*attempt.Attempt
	APICalls     int64
}

// Runner conducts benchmark runs.
type Runner struct {
	opts Options
}

// NewRunner creates a runner.
func NewRunner(opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Mode == "" {
		opts.Mode = attempt.ModeTwoPhase
	}
	return &Runner{opts: opts}
}

// clientID identifies this client to the server, provider/model.
func (r *Runner) clientID(adapter provider.Adapter) string {
	return adapter.Name() + "/" + adapter.Model()
}

func (r *Runner) adapter(ctx context.Context) (*provider.RateLimited, error) {
	inner := r.opts.Adapter
	if inner == nil {
		var err error
		inner, err = provider.New(ctx, r.opts.Provider)
		if err != nil {
			return nil, err
		}
	}
	return provider.NewRateLimited(inner, r.opts.RequestsPerSecond, 1), nil
}

// Start opens a new run for the given problem set and drives it to
// completion.
func (r *Runner) Start(ctx context.Context, problemSet string) (*Result, error) {
	adapter, err := r.adapter(ctx)
	if err != nil {
		return nil, err
	}

	started, err := r.opts.Server.StartRun(ctx, &api.StartRunRequest{
		ClientID:           r.clientID(adapter),
		ProblemSet:         problemSet,
		Subset:             r.opts.Subset,
		AttemptsPerProblem: r.opts.AttemptsPerProblem,
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	scoped := r.opts.Server.ForRun(started.RunID)

	if err := r.opts.Store.CreateRun(ctx, &store.Run{
		ID:               started.RunID,
		Provider:         adapter.Name(),
		Model:            adapter.Model(),
		RunType:          started.RunType,
		BenchmarkVersion: started.BenchmarkVersion,
		Config: map[string]any{
			"phase-mode":  string(r.opts.Mode),
			"subset":      r.opts.Subset,
			"concurrency": r.opts.Concurrency,
		},
		StartedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	return r.conduct(ctx, scoped, adapter, started.RunID, started.RunType, started.Attempts)
}

// Resume picks up a failed run from the store.
//
// The attempt the run died on is either dropped (ResumeSkip) or rewound on
// the server and retried (ResumeRetry); attempts already stored are never
// repeated.
func (r *Runner) Resume(ctx context.Context, runID string, policy ResumePolicy) (*Result, error) {
	failed, err := r.opts.Store.GetFailedRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if failed.FailureInfo == nil || len(failed.FailureInfo.AllAttempts) == 0 {
		return nil, fmt.Errorf("%w: run %s has no recorded attempts", ErrNothingToResume, runID)
	}

	adapter, err := r.adapter(ctx)
	if err != nil {
		return nil, err
	}

	completed, err := r.opts.Store.CompletedAttempts(ctx, runID)
	if err != nil {
		return nil, err
	}

	scoped := r.opts.Server.ForRun(runID)
	failedAttempt := failed.FailureInfo.CurrentAttemptID

	var remaining []api.AttemptSpec
	for _, spec := range failed.FailureInfo.AllAttempts {
		if completed[spec.AttemptID] {
			continue
		}
		if spec.AttemptID == failedAttempt {
			if policy == ResumeSkip {
				continue
			}
			if err := scoped.ResetAttempt(ctx, spec.AttemptID); err != nil {
				return nil, fmt.Errorf("reset attempt %s: %w", spec.AttemptID, err)
			}
		}
		remaining = append(remaining, spec)
	}
	if len(remaining) == 0 {
		return nil, fmt.Errorf("%w: run %s", ErrNothingToResume, runID)
	}

	slog.Info("Resuming run",
		"run_id", runID,
		"policy", string(policy),
		"remaining", len(remaining),
		"completed", len(completed),
	)

	return r.conduct(ctx, scoped, adapter, runID, failed.RunType, remaining)
}

// conduct fans the attempts out, persists their outcomes, and closes the
// run. A fatal failure records resumable state and returns the error.
func (r *Runner) conduct(ctx context.Context, scoped *api.Client, adapter *provider.RateLimited,
	runID, runType string, specs []api.AttemptSpec) (*Result, error) {

	attempts := make([]*attempt.Attempt, len(specs))

	var mu sync.Mutex
	var fatalAttemptID string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, spec := range specs {
		g.Go(func() error {
			a, runErr := r.runAttempt(gctx, scoped, adapter, spec)

			mu.Lock()
			attempts[i] = a
			mu.Unlock()

			if runErr != nil {
				// fatally failed attempts stay unrecorded so a resume
				// will pick them back up
				mu.Lock()
				if fatalAttemptID == "" {
					fatalAttemptID = spec.AttemptID
				}
				mu.Unlock()
				return runErr
			}

			if gctx.Err() != nil && a.Interrupted() {
				// siblings cut off by another attempt's fatal failure
				// never ran; unrecorded, a resume runs them afresh
				return nil
			}

			if saveErr := r.opts.Store.SaveAttempt(ctx, runID, a, a.TranscriptText); saveErr != nil {
				slog.Error("Failed to persist attempt", "attempt_id", spec.AttemptID, "error", saveErr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		info := &store.FailureInfo{
			Error:            err.Error(),
			CurrentAttemptID: fatalAttemptID,
			AllAttempts:      specs,
		}
		if saveErr := r.opts.Store.SaveRunFailure(ctx, runID, info); saveErr != nil {
			slog.Error("Failed to record run failure", "run_id", runID, "error", saveErr)
		}
		return nil, fmt.Errorf("run %s failed: %w", runID, err)
	}

	completed, err := scoped.CompleteRun(ctx)
	if err != nil {
		info := &store.FailureInfo{Error: err.Error(), AllAttempts: specs}
		if saveErr := r.opts.Store.SaveRunFailure(ctx, runID, info); saveErr != nil {
			slog.Error("Failed to record run failure", "run_id", runID, "error", saveErr)
		}
		return nil, fmt.Errorf("complete run %s: %w", runID, err)
	}

	if err := r.opts.Store.SaveRunResult(ctx, runID, completed, int(adapter.Calls())); err != nil {
		return nil, err
	}

	slog.Info("Run complete",
		"run_id", runID,
		"score", fmt.Sprintf("%d/%d", completed.Score.Numerator, completed.Score.Denominator),
		"percent", completed.Percent,
		"api_calls", adapter.Calls(),
	)

	kept := make([]*attempt.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a != nil {
			kept = append(kept, a)
		}
	}

	return &Result{
		RunID:        runID,
		RunType:      runType,
		Score:        completed.Score,
		Percent:      completed.Percent,
		RunTime:      completed.RunTime,
		ProblemNames: completed.ProblemNames,
		Attempts:     kept,
		APICalls:     adapter.Calls(),
	}, nil
}

// runAttempt wires one orchestrator and runs it.
func (r *Runner) runAttempt(ctx context.Context, scoped *api.Client, adapter provider.Adapter,
	spec api.AttemptSpec) (*attempt.Attempt, error) {

	executor := toolexec.NewExecutor(scoped, spec)
	orch := attempt.NewOrchestrator(attempt.Config{
		Adapter:          adapter,
		Tools:            executor,
		Scorer:           newServerScorer(scoped, spec.AttemptID),
		Mode:             r.opts.Mode,
		AttemptID:        spec.AttemptID,
		FunctionParams:   toolexec.Schema(spec.ArgSpec),
		TestLimit:        spec.TestLimit,
		MaxTurnsPerPhase: r.opts.MaxTurnsPerPhase,
		CorrectionBudget: r.opts.CorrectionBudget,
		MaxTokens:        r.opts.MaxTokens,
	})

	a, err := orch.Run(ctx)
	a.TranscriptText = orch.Transcript().Render()

	slog.Info("Attempt finished",
		"attempt_id", spec.AttemptID,
		"outcome", a.Outcome,
		"forced", a.Forced,
		"tool_calls", a.ToolCalls,
		"provider_calls", a.ProviderCalls,
	)
	return a, err
}
