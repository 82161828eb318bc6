// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package attempt runs the investigation-verification protocol for a single
// benchmark problem.
//
// An attempt moves through a small state machine: the model probes the
// hidden function with tool calls (INVESTIGATING), optionally condenses what
// it learned into a summary that replaces the whole transcript
// (SUMMARIZING, three-phase mode only), then predicts outputs for the
// server's verification inputs (VERIFYING). Provider choice and phase mode
// are configuration; there is exactly one orchestrator.
package attempt

import (
	"time"
)

// Phase is the attempt's position in the protocol.
type Phase string

const (
	// PhaseInvestigating is the probing stage.
	PhaseInvestigating Phase = "INVESTIGATING"

	// PhaseSummarizing is the transcript-condensing stage between
	// investigation and verification. Three-phase mode only.
	PhaseSummarizing Phase = "SUMMARIZING"

	// PhaseVerifying is the prediction stage.
	PhaseVerifying Phase = "VERIFYING"

	// PhaseDone is terminal.
	PhaseDone Phase = "DONE"
)

// AllPhases returns every phase, in protocol order.
func AllPhases() []Phase {
	return []Phase{PhaseInvestigating, PhaseSummarizing, PhaseVerifying, PhaseDone}
}

// Mode selects the context-management policy.
type Mode string

const (
	// ModeTwoPhase carries the full investigation transcript into
	// verification.
	ModeTwoPhase Mode = "two-phase"

	// ModeThreePhase resets the transcript between investigation and
	// verification, seeding verification with only the model's summary.
	// This isolates verification from context-window bugs some vendors
	// exhibit on long tool-call transcripts.
	ModeThreePhase Mode = "three-phase"
)

// Outcome is the attempt's final disposition.
type Outcome string

const (
	// OutcomePending means the attempt has not finished.
	OutcomePending Outcome = "pending"

	// OutcomeCorrect means every verification case passed.
	OutcomeCorrect Outcome = "verified-correct"

	// OutcomeIncorrect means a verification case failed.
	OutcomeIncorrect Outcome = "verified-incorrect"

	// OutcomeAborted means the attempt could not be completed. The
	// failure reason is recorded on the attempt, never raised, so one
	// aborted attempt cannot take down a batch.
	OutcomeAborted Outcome = "aborted"
)

// Canonical failure reasons for aborts caused by the context rather than
// by the attempt itself.
const (
	ReasonCanceled         = "canceled"
	ReasonDeadlineExceeded = "deadline-exceeded"
)

// Attempt is the record of one problem/provider pairing.
type Attempt struct {
	// ID is the server-assigned attempt id.
	ID string

	// Provider and Model identify the vendor pairing.
	Provider string
	Model    string

	// Mode is the context-management policy the attempt ran under.
	Mode Mode

	// Phase is the current phase; PhaseDone once finalized.
	Phase Phase

	// Outcome is the final disposition; OutcomePending until finalized.
	Outcome Outcome

	// Forced records that investigation ended because the turn budget ran
	// out rather than because the model signalled readiness. Downstream
	// scoring treats this as a distinct case, not a silent success.
	Forced bool

	// FailureReason is set when Outcome is OutcomeAborted.
	FailureReason string

	// Accounting.
	ToolCalls     int
	ProviderCalls int
	InputTokens   int
	OutputTokens  int

	// TranscriptText is the rendered conversation, filled in by the
	// caller before persistence.
	TranscriptText string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Interrupted reports that the attempt was cut off by its context,
// typically because a sibling's fatal failure cancelled the run. An
// interrupted attempt did no work of its own worth keeping.
func (a *Attempt) Interrupted() bool {
	return a.Outcome == OutcomeAborted &&
		(a.FailureReason == ReasonCanceled || a.FailureReason == ReasonDeadlineExceeded)
}

// Duration returns the attempt's wall time.
func (a *Attempt) Duration() time.Duration {
	if a.FinishedAt.IsZero() {
		return 0
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

// Finished reports whether the attempt reached a terminal outcome.
func (a *Attempt) Finished() bool {
	return a.Outcome != OutcomePending && a.Outcome != ""
}
