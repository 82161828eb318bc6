// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

// Verdicts a Scorer may return.
const (
	VerdictCorrect = "correct"
	VerdictWrong   = "wrong"
	VerdictDone    = "done"
)

// VerificationCase is one input the model must predict the output for.
type VerificationCase struct {
	Inputs     []any
	OutputType string
}

// Scorer hands out verification cases and judges predictions. The
// benchmark server is the production implementation.
type Scorer interface {
	// Next returns the next case, or (nil, nil) when none remain.
	Next(ctx context.Context) (*VerificationCase, error)

	// Score judges the prediction for the current case and returns one of
	// the Verdict constants.
	Score(ctx context.Context, prediction any) (string, error)
}

// ToolRunner resolves probes of the hidden function.
type ToolRunner interface {
	// Run resolves one tool call. Correctable failures come back as error
	// results, never as Go errors.
	Run(ctx context.Context, call provider.ToolCall) provider.ToolResult

	// Probes returns how many times the hidden function was called.
	Probes() int
}

// Config wires one attempt.
type Config struct {
	// Adapter is the provider connection.
	Adapter provider.Adapter

	// Tools resolves mystery-function probes.
	Tools ToolRunner

	// Scorer judges verification predictions.
	Scorer Scorer

	// Mode selects the context-management policy.
	Mode Mode

	// AttemptID is the server-assigned id for this problem.
	AttemptID string

	// FunctionParams is the hidden function's named parameter schema.
	FunctionParams []provider.Parameter

	// TestLimit is the probe budget, surfaced to the model in the opening
	// prompt. Zero means unlimited.
	TestLimit int

	// MaxTurnsPerPhase bounds assistant turns in each phase so a stalled
	// model cannot loop forever. Zero means the default of 20.
	MaxTurnsPerPhase int

	// CorrectionBudget bounds correctable mistakes per phase. Zero means
	// the default of 3.
	CorrectionBudget int

	// MaxTokens bounds each completion. Zero means adapter default.
	MaxTokens int

	// Retry is the backoff policy for provider calls. Zero value means
	// DefaultRetryPolicy.
	Retry RetryPolicy
}

const (
	defaultMaxTurns         = 20
	defaultCorrectionBudget = 3
)

// Orchestrator drives one attempt through the phase machine.
//
// A single orchestrator serves a single attempt; run several orchestrators
// concurrently for a batch. All failures short of authentication and
// request-shape bugs are recorded on the Attempt and never returned, so one
// bad attempt cannot abort its siblings.
type Orchestrator struct {
	cfg        Config
	controller *Controller
	transcript *Transcript
	attempt    *Attempt
	tracer     trace.Tracer

	// corrections counts correctable mistakes in the current phase.
	corrections int
}

// NewOrchestrator creates an orchestrator for one attempt.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.MaxTurnsPerPhase <= 0 {
		cfg.MaxTurnsPerPhase = defaultMaxTurns
	}
	if cfg.CorrectionBudget <= 0 {
		cfg.CorrectionBudget = defaultCorrectionBudget
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}

	return &Orchestrator{
		cfg:        cfg,
		controller: NewController(cfg.Mode),
		transcript: NewTranscript(),
		tracer:     otel.Tracer("bench/attempt"),
		attempt: &Attempt{
			ID:       cfg.AttemptID,
			Provider: cfg.Adapter.Name(),
			Model:    cfg.Adapter.Model(),
			Mode:     cfg.Mode,
			Phase:    PhaseInvestigating,
			Outcome:  OutcomePending,
		},
	}
}

// Transcript exposes the conversation state for persistence and printing.
func (o *Orchestrator) Transcript() *Transcript {
	return o.transcript
}

// Run drives the attempt to a terminal outcome.
//
// Description:
//
//	Investigates until the model signals readiness or the turn budget
//	runs out, optionally summarizes and resets context (three-phase
//	mode), then walks the verification cases until one fails or all
//	pass.
//
// Outputs:
//
//	*Attempt - Always non-nil; carries outcome, accounting, and any
//	           failure reason.
//	error - Non-nil only for failures fatal to the whole run
//	        (authentication, canonicalization bugs).
func (o *Orchestrator) Run(ctx context.Context) (*Attempt, error) {
	ctx, span := o.tracer.Start(ctx, "attempt.run", trace.WithAttributes(
		attribute.String("attempt.id", o.cfg.AttemptID),
		attribute.String("provider", o.attempt.Provider),
		attribute.String("model", o.attempt.Model),
		attribute.String("mode", string(o.cfg.Mode)),
	))
	defer span.End()

	o.attempt.StartedAt = time.Now()
	defer o.finalize()

	if err := o.transcript.Append(initialMessage(o.cfg.FunctionParams, o.cfg.TestLimit)); err != nil {
		return o.attempt, fmt.Errorf("seed transcript: %w", err)
	}

	ready, err := o.investigate(ctx)
	if err != nil || o.attempt.Finished() {
		return o.attempt, err
	}
	if !ready {
		// budget forced the phase to end; annotated, not a failure
		o.attempt.Forced = true
		forcedTransitionsTotal.WithLabelValues(o.attempt.Provider).Inc()
		slog.Info("Investigation turn budget exhausted, forcing transition",
			"attempt_id", o.cfg.AttemptID)
	}

	if o.controller.AfterInvestigation() == PhaseSummarizing {
		if err := o.summarize(ctx); err != nil || o.attempt.Finished() {
			return o.attempt, err
		}
	} else {
		o.transition(PhaseVerifying, "investigation complete")
	}

	if err := o.verify(ctx); err != nil {
		return o.attempt, err
	}
	return o.attempt, nil
}

// investigate runs the probing loop. It returns true when the model
// signalled readiness, false when the turn budget ran out.
func (o *Orchestrator) investigate(ctx context.Context) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "attempt.investigate")
	defer span.End()

	tools := investigationTools(o.cfg.FunctionParams)

	for turn := 0; turn < o.cfg.MaxTurnsPerPhase; turn++ {
		resp, err := o.send(ctx, tools)
		if err != nil {
			return false, o.sendFailed(err)
		}
		if err := o.transcript.Append(resp.Message); err != nil {
			return false, o.abortInternal(err)
		}

		if !resp.HasToolCalls() {
			// plain text, no signal; keep going within the budget
			continue
		}

		ready, err := o.resolveInvestigationCalls(ctx, resp.Message.ToolCalls)
		if err != nil {
			return false, err
		}
		if o.attempt.Finished() {
			return false, nil
		}
		if ready {
			return true, nil
		}
	}
	return false, nil
}

// resolveInvestigationCalls answers every tool call of one assistant turn.
func (o *Orchestrator) resolveInvestigationCalls(ctx context.Context, calls []provider.ToolCall) (bool, error) {
	ready := false
	results := make([]provider.ToolResult, 0, len(calls))

	for _, call := range calls {
		switch call.Name {
		case ToolMysteryFunction:
			res := o.cfg.Tools.Run(ctx, call)
			if res.IsError {
				o.recordCorrection("tool_error")
			}
			results = append(results, res)
		case ToolReadyToVerify:
			ready = true
			results = append(results, provider.ToolResult{
				ToolCallID: call.ID,
				Content:    "Understood. Verification begins now.",
			})
		default:
			o.recordCorrection("unknown_tool")
			results = append(results, provider.ToolResult{
				ToolCallID: call.ID,
				Content:    fmt.Sprintf("unknown tool %q; available tools: %s, %s", call.Name, ToolMysteryFunction, ToolReadyToVerify),
				IsError:    true,
			})
		}
		toolCallsTotal.WithLabelValues(call.Name).Inc()
	}

	o.attempt.ToolCalls += len(calls)
	if err := o.transcript.AppendResults(results); err != nil {
		return false, o.abortInternal(err)
	}
	if o.corrections > o.cfg.CorrectionBudget {
		o.abort(fmt.Sprintf("%v during %s", ErrCorrectionBudget, o.controller.Current()))
	}
	return ready, nil
}

// summarize asks for a condensed account of the investigation, then resets
// the transcript so verification sees only that summary.
func (o *Orchestrator) summarize(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "attempt.summarize")
	defer span.End()

	o.transition(PhaseSummarizing, "investigation complete")

	if err := o.transcript.Append(summaryRequest()); err != nil {
		return o.abortInternal(err)
	}

	// no tools offered; the model must answer in text
	resp, err := o.send(ctx, nil)
	if err != nil {
		return o.sendFailed(err)
	}
	if err := o.transcript.Append(resp.Message); err != nil {
		return o.abortInternal(err)
	}

	summary := resp.Message.Content
	if summary == "" {
		o.abort("summarizing produced no text")
		return nil
	}

	if err := o.transcript.Reset([]provider.Message{summarySeed(summary)}); err != nil {
		return o.abortInternal(err)
	}
	o.transition(PhaseVerifying, "context reset to summary")
	return nil
}

// verify walks the verification cases until one fails or all pass.
func (o *Orchestrator) verify(ctx context.Context) error {
	ctx, span := o.tracer.Start(ctx, "attempt.verify")
	defer span.End()

	for {
		vcase, err := o.cfg.Scorer.Next(ctx)
		if err != nil {
			if reason, ok := contextReason(err); ok {
				o.abort(reason)
			} else {
				o.abort(fmt.Sprintf("fetch verification: %v", err))
			}
			return nil
		}
		if vcase == nil {
			break
		}

		prediction, err := o.solicitPrediction(ctx, vcase)
		if err != nil || o.attempt.Finished() {
			return err
		}

		verdict, err := o.cfg.Scorer.Score(ctx, prediction)
		if err != nil {
			if reason, ok := contextReason(err); ok {
				o.abort(reason)
			} else {
				o.abort(fmt.Sprintf("score verification: %v", err))
			}
			return nil
		}

		slog.Info("Verification judged",
			"attempt_id", o.cfg.AttemptID,
			"verdict", verdict,
		)

		switch verdict {
		case VerdictWrong:
			o.conclude(OutcomeIncorrect)
			return nil
		case VerdictDone:
			o.conclude(OutcomeCorrect)
			return nil
		}
	}

	o.conclude(OutcomeCorrect)
	return nil
}

// solicitPrediction presents one case and loops until the model commits a
// prediction through the submission tool.
func (o *Orchestrator) solicitPrediction(ctx context.Context, vcase *VerificationCase) (any, error) {
	if err := o.transcript.Append(verificationMessage(vcase.Inputs, vcase.OutputType)); err != nil {
		return nil, o.abortInternal(err)
	}

	tools := verificationTools(vcase.OutputType)

	for turn := 0; turn < o.cfg.MaxTurnsPerPhase; turn++ {
		resp, err := o.send(ctx, tools)
		if err != nil {
			return nil, o.sendFailed(err)
		}
		if err := o.transcript.Append(resp.Message); err != nil {
			return nil, o.abortInternal(err)
		}

		if !resp.HasToolCalls() {
			continue
		}

		var prediction any
		var submitted bool
		results := make([]provider.ToolResult, 0, len(resp.Message.ToolCalls))

		for _, call := range resp.Message.ToolCalls {
			toolCallsTotal.WithLabelValues(call.Name).Inc()
			if call.Name != ToolSubmitPrediction {
				o.recordCorrection("unknown_tool")
				results = append(results, provider.ToolResult{
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("unknown tool %q; submit your answer with %s", call.Name, ToolSubmitPrediction),
					IsError:    true,
				})
				continue
			}

			value, perr := parsePrediction(call.Arguments)
			if perr != nil {
				o.recordCorrection("bad_submission")
				results = append(results, provider.ToolResult{
					ToolCallID: call.ID,
					Content:    perr.Error(),
					IsError:    true,
				})
				continue
			}

			prediction = value
			submitted = true
			results = append(results, provider.ToolResult{
				ToolCallID: call.ID,
				Content:    "prediction received",
			})
		}

		o.attempt.ToolCalls += len(resp.Message.ToolCalls)
		if err := o.transcript.AppendResults(results); err != nil {
			return nil, o.abortInternal(err)
		}
		if o.corrections > o.cfg.CorrectionBudget {
			o.abort(fmt.Sprintf("%v during %s", ErrCorrectionBudget, o.controller.Current()))
			return nil, nil
		}
		if submitted {
			return prediction, nil
		}
	}

	o.abort(fmt.Sprintf("%v: no prediction submitted", ErrTurnBudget))
	return nil, nil
}

// parsePrediction extracts expected_output from a submission call.
func parsePrediction(raw string) (any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("submission is not a JSON object: %v", err)
	}
	value, ok := args["expected_output"]
	if !ok {
		return nil, fmt.Errorf("submission is missing the expected_output argument")
	}
	return value, nil
}

// send requests the next assistant turn, retrying retryable failures.
func (o *Orchestrator) send(ctx context.Context, tools []provider.ToolDefinition) (*provider.Response, error) {
	req := &provider.Request{
		System:    systemPrompt,
		Messages:  o.transcript.Messages(),
		Tools:     tools,
		MaxTokens: o.cfg.MaxTokens,
	}

	var resp *provider.Response
	tries := 0
	err := o.cfg.Retry.Do(ctx, func() error {
		tries++
		o.attempt.ProviderCalls++
		providerCallsTotal.WithLabelValues(o.attempt.Provider).Inc()

		var sendErr error
		resp, sendErr = o.cfg.Adapter.Send(ctx, req)
		return sendErr
	})
	if tries > 1 {
		providerRetriesTotal.WithLabelValues(o.attempt.Provider).Inc()
	}
	if err != nil {
		return nil, err
	}

	o.attempt.InputTokens += resp.InputTokens
	o.attempt.OutputTokens += resp.OutputTokens
	return resp, nil
}

// sendFailed maps a provider failure onto the attempt. Fatal errors are
// returned so the caller can abort the whole run; everything else is
// recorded and swallowed.
func (o *Orchestrator) sendFailed(err error) error {
	if provider.IsFatal(err) {
		o.abort(fmt.Sprintf("fatal provider error: %v", err))
		return err
	}
	if reason, ok := contextReason(err); ok {
		o.abort(reason)
		return nil
	}
	o.abort(err.Error())
	return nil
}

// contextReason maps context errors onto the canonical failure reasons so
// downstream handling can tell an interrupted attempt from a failed one.
func contextReason(err error) (string, bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled, true
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadlineExceeded, true
	}
	return "", false
}

// abortInternal records an engine bug on the attempt and returns it; these
// indicate broken invariants, not model behavior.
func (o *Orchestrator) abortInternal(err error) error {
	o.abort(fmt.Sprintf("internal: %v", err))
	return err
}

func (o *Orchestrator) abort(reason string) {
	slog.Warn("Attempt aborted",
		"attempt_id", o.cfg.AttemptID,
		"phase", o.controller.Current(),
		"reason", reason,
	)
	o.attempt.FailureReason = reason
	o.conclude(OutcomeAborted)
}

func (o *Orchestrator) conclude(outcome Outcome) {
	if o.attempt.Finished() {
		return
	}
	o.attempt.Outcome = outcome
	o.transition(PhaseDone, string(outcome))
}

// transition moves phases and resets the per-phase correction count.
// Edges come from the mode's table; a rejected edge is an engine bug and
// panics rather than silently corrupting the protocol.
func (o *Orchestrator) transition(to Phase, reason string) {
	if err := o.controller.Transition(to, reason); err != nil {
		panic(err)
	}
	o.attempt.Phase = to
	o.corrections = 0
}

func (o *Orchestrator) recordCorrection(kind string) {
	o.corrections++
	correctionsTotal.WithLabelValues(o.attempt.Provider, kind).Inc()
}

func (o *Orchestrator) finalize() {
	if o.attempt.FinishedAt.IsZero() {
		o.attempt.FinishedAt = time.Now()
	}
	if !o.attempt.Finished() {
		o.attempt.Outcome = OutcomeAborted
		if o.attempt.FailureReason == "" {
			o.attempt.FailureReason = "attempt ended without outcome"
		}
	}
	attemptsTotal.WithLabelValues(o.attempt.Provider, string(o.attempt.Outcome)).Inc()
	attemptDuration.WithLabelValues(o.attempt.Provider).Observe(o.attempt.Duration().Seconds())
}
