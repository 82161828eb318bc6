// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/attempt"
	"github.com/sherlockbench/sherlockbench-go/services/bench/run"
	"github.com/sherlockbench/sherlockbench-go/services/bench/store"
)

var (
	runResumePolicy       string
	runAttemptsPerProblem int
	runSubset             string
	runConcurrency        int
	runPhaseMode          string
)

// runCmd starts a benchmark run, or resumes one when the target parses as
// a run id.
//
// # Examples
//
//	sherlockbench run openai easy3          # New run of problem set easy3
//	sherlockbench run openai <run-uuid>     # Resume an interrupted run
//	sherlockbench run anthropic easy3 --attempts-per-problem 2
var runCmd = &cobra.Command{
	Use:   "run <provider> <problem-set|run-id>",
	Short: "Run a benchmark against a provider",
	Long: `Runs a benchmark. The second argument is either a problem set id
(see the list command) to start a new run, or the UUID of an interrupted
run to resume it.

When resuming, --resume decides what happens to the attempt the run died
on: "retry" rewinds it on the server and tries again, "skip" drops it.`,
	Args: cobra.ExactArgs(2),
	RunE: runBenchmark,
}

func init() {
	runCmd.Flags().StringVar(&runResumePolicy, "resume", "retry",
		"Policy for the failed attempt when resuming: retry or skip")
	runCmd.Flags().IntVar(&runAttemptsPerProblem, "attempts-per-problem", 0,
		"Ask the server for repeated attempts per problem")
	runCmd.Flags().StringVar(&runSubset, "subset", "",
		"Restrict the problem set server-side")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0,
		"Parallel attempts (overrides config)")
	runCmd.Flags().StringVar(&runPhaseMode, "phase-mode", "",
		"Context policy: two-phase or three-phase (overrides config)")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	providerName, target := args[0], args[1]

	settings, err := cfg.ProviderSettings(providerName)
	if err != nil {
		return err
	}

	mode := cfg.PhaseModeFor(providerName)
	if runPhaseMode != "" {
		mode = runPhaseMode
	}

	subset := cfg.Subset
	if runSubset != "" {
		subset = runSubset
	}

	concurrency := cfg.Concurrency
	if runConcurrency > 0 {
		concurrency = runConcurrency
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	runner := run.NewRunner(run.Options{
		Server:             api.NewClient(cfg.BaseURL),
		Store:              db,
		Provider:           settings,
		Mode:               attempt.Mode(mode),
		Concurrency:        concurrency,
		Subset:             subset,
		AttemptsPerProblem: runAttemptsPerProblem,
		RequestsPerSecond:  cfg.RateLimitRPS,
		MaxTurnsPerPhase:   cfg.MsgLimit,
		CorrectionBudget:   cfg.CorrectionBudget,
		MaxTokens:          cfg.Providers[providerName].MaxTokens,
	})

	ctx := cmd.Context()

	var result *run.Result
	if _, parseErr := uuid.Parse(target); parseErr == nil {
		slog.Info("Target is a run id, resuming", "run_id", target)
		result, err = runner.Resume(ctx, target, run.ResumePolicy(runResumePolicy))
	} else {
		result, err = runner.Start(ctx, target)
	}
	if err != nil {
		return err
	}

	printResult(os.Stdout, result)
	return nil
}

func printResult(w io.Writer, result *run.Result) {
	fmt.Fprintf(w, "\nRun %s complete (%s)\n", result.RunID, result.RunType)
	fmt.Fprintf(w, "Score: %d/%d (%.1f%%)\n",
		result.Score.Numerator, result.Score.Denominator, result.Percent)
	if result.RunTime != "" {
		fmt.Fprintf(w, "Time:  %s\n", result.RunTime)
	}
	fmt.Fprintf(w, "Provider API calls: %d\n\n", result.APICalls)

	for _, a := range result.Attempts {
		marker := " "
		if a.Outcome == attempt.OutcomeCorrect {
			marker = "+"
		} else if a.Outcome == attempt.OutcomeIncorrect {
			marker = "-"
		}
		forced := ""
		if a.Forced {
			forced = " (forced)"
		}
		fmt.Fprintf(w, " %s %-38s %s%s  tools=%d calls=%d\n",
			marker, a.ID, a.Outcome, forced, a.ToolCalls, a.ProviderCalls)
	}

	if len(result.ProblemNames) > 0 {
		fmt.Fprintf(w, "\nProblems: %s\n", strings.Join(result.ProblemNames, ", "))
	}
}
