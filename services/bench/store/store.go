// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store persists runs and attempt transcripts to SQLite.
//
// Every attempt's transcript and accounting is written as it finishes so
// the labeling and summarizing commands can work offline, and so an
// interrupted run leaves enough state behind to resume from.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/attempt"
)

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	provider          TEXT NOT NULL,
	model             TEXT NOT NULL,
	run_type          TEXT NOT NULL,
	benchmark_version TEXT NOT NULL,
	config            TEXT NOT NULL DEFAULT '{}',
	status            TEXT NOT NULL DEFAULT 'running',
	score_numerator   INTEGER,
	score_denominator INTEGER,
	percent           REAL,
	total_api_calls   INTEGER,
	run_time          TEXT,
	failure_info      TEXT,
	started_at        TIMESTAMP NOT NULL,
	finished_at       TIMESTAMP
);

CREATE TABLE IF NOT EXISTS attempts (
	id             TEXT NOT NULL,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	mode           TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	forced         INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT,
	tool_calls     INTEGER NOT NULL DEFAULT 0,
	provider_calls INTEGER NOT NULL DEFAULT 0,
	input_tokens   INTEGER NOT NULL DEFAULT 0,
	output_tokens  INTEGER NOT NULL DEFAULT 0,
	transcript     TEXT NOT NULL DEFAULT '',
	label          TEXT,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id);
`

// Run is one stored benchmark run.
type Run struct {
	ID               string
	Provider         string
	Model            string
	RunType          string
	BenchmarkVersion string
	Config           map[string]any
	Status           string
	Score            *api.Score
	Percent          float64
	TotalAPICalls    int
	RunTime          string
	FailureInfo      *FailureInfo
	StartedAt        time.Time
	FinishedAt       time.Time
}

// FailureInfo captures where an interrupted run stopped so it can resume.
type FailureInfo struct {
	Error            string            `json:"error"`
	CurrentAttemptID string            `json:"current-attempt-id,omitempty"`
	AllAttempts      []api.AttemptSpec `json:"all-attempts,omitempty"`
}

// AttemptRecord is one stored attempt.
type AttemptRecord struct {
	ID            string
	RunID         string
	Mode          string
	Outcome       string
	Forced        bool
	FailureReason string
	ToolCalls     int
	ProviderCalls int
	InputTokens   int
	OutputTokens  int
	Transcript    string
	Label         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Store wraps the SQLite database.
//
// Thread Safety:
//
//	Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a freshly started run.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("store: encode config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, provider, model, run_type, benchmark_version, config, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Provider, run.Model, run.RunType, run.BenchmarkVersion,
		string(cfg), StatusRunning, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create run: %w", err)
	}
	return nil
}

// SaveRunResult finalizes a run with its score.
func (s *Store) SaveRunResult(ctx context.Context, runID string, result *api.CompleteRunResponse, totalAPICalls int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, score_numerator = ?, score_denominator = ?,
			percent = ?, total_api_calls = ?, run_time = ?, failure_info = NULL,
			finished_at = ?
		WHERE id = ?`,
		StatusComplete, result.Score.Numerator, result.Score.Denominator,
		result.Percent, totalAPICalls, result.RunTime, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("store: save run result: %w", err)
	}
	return requireRow(res, runID)
}

// SaveRunFailure marks a run failed with enough context to resume it.
func (s *Store) SaveRunFailure(ctx context.Context, runID string, info *FailureInfo) error {
	encoded, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("store: encode failure info: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, failure_info = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, string(encoded), time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("store: save run failure: %w", err)
	}
	return requireRow(res, runID)
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider, model, run_type, benchmark_version, config, status,
			score_numerator, score_denominator, percent, total_api_calls,
			run_time, failure_info, started_at, finished_at
		FROM runs WHERE id = ?`, runID)

	var run Run
	var cfg string
	var numerator, denominator, totalCalls sql.NullInt64
	var percent sql.NullFloat64
	var runTime, failureInfo sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Provider, &run.Model, &run.RunType,
		&run.BenchmarkVersion, &cfg, &run.Status,
		&numerator, &denominator, &percent, &totalCalls,
		&runTime, &failureInfo, &run.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}

	if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
		return nil, fmt.Errorf("store: decode config: %w", err)
	}
	if numerator.Valid {
		run.Score = &api.Score{Numerator: int(numerator.Int64), Denominator: int(denominator.Int64)}
	}
	run.Percent = percent.Float64
	run.TotalAPICalls = int(totalCalls.Int64)
	run.RunTime = runTime.String
	if failureInfo.Valid && failureInfo.String != "" {
		run.FailureInfo = &FailureInfo{}
		if err := json.Unmarshal([]byte(failureInfo.String), run.FailureInfo); err != nil {
			return nil, fmt.Errorf("store: decode failure info: %w", err)
		}
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

// GetFailedRun loads a run only if it is resumable.
func (s *Store) GetFailedRun(ctx context.Context, runID string) (*Run, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusFailed {
		return nil, fmt.Errorf("%w: run %s is %s, not failed", ErrNotFound, runID, run.Status)
	}
	return run, nil
}

// SaveAttempt records one finished attempt and its transcript.
func (s *Store) SaveAttempt(ctx context.Context, runID string, a *attempt.Attempt, transcript string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, run_id, mode, outcome, forced, failure_reason,
			tool_calls, provider_calls, input_tokens, output_tokens,
			transcript, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, runID, string(a.Mode), string(a.Outcome), a.Forced, a.FailureReason,
		a.ToolCalls, a.ProviderCalls, a.InputTokens, a.OutputTokens,
		transcript, a.StartedAt.UTC(), a.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: save attempt: %w", err)
	}
	return nil
}

// LabelAttempt attaches a human label to a stored attempt.
func (s *Store) LabelAttempt(ctx context.Context, runID, attemptID, label string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET label = ? WHERE run_id = ? AND id = ?`, label, runID, attemptID)
	if err != nil {
		return fmt.Errorf("store: label attempt: %w", err)
	}
	return requireRow(res, attemptID)
}

// CompletedAttempts returns the ids of attempts already finished for a run.
func (s *Store) CompletedAttempts(ctx context.Context, runID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM attempts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: completed attempts: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: completed attempts: %w", err)
		}
		done[id] = true
	}
	return done, rows.Err()
}

// ListAttempts returns every stored attempt for a run, in insertion order.
func (s *Store) ListAttempts(ctx context.Context, runID string) ([]AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, mode, outcome, forced, failure_reason, tool_calls,
			provider_calls, input_tokens, output_tokens, transcript, label,
			started_at, finished_at
		FROM attempts WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: list attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		var reason, label sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Mode, &rec.Outcome, &rec.Forced,
			&reason, &rec.ToolCalls, &rec.ProviderCalls, &rec.InputTokens,
			&rec.OutputTokens, &rec.Transcript, &label,
			&rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: list attempts: %w", err)
		}
		rec.FailureReason = reason.String
		rec.Label = label.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListRuns returns all stored runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: list runs: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
