// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sherlockbench/sherlockbench-go/services/bench/store"
)

func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

// showCmd summarizes a stored run and its attempts, including any labels
// added during review.
var showCmd = &cobra.Command{
	Use:     "show <run-id>",
	Short:   "Show a stored run and its attempts",
	Aliases: []string{"summarize"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, db *store.Store) error {
			r, err := db.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Run %s (%s)\n", r.ID, r.Status)
			fmt.Printf("Provider: %s/%s\n", r.Provider, r.Model)
			if r.BenchmarkVersion != "" {
				fmt.Printf("Benchmark: %s\n", r.BenchmarkVersion)
			}
			if r.Score != nil {
				fmt.Printf("Score: %d/%d (%.1f%%), %d API calls\n",
					r.Score.Numerator, r.Score.Denominator, r.Percent, r.TotalAPICalls)
			}
			if r.FailureInfo != nil {
				fmt.Printf("Failed on attempt %s: %s\n",
					r.FailureInfo.CurrentAttemptID, r.FailureInfo.Error)
			}

			attempts, err := db.ListAttempts(ctx, r.ID)
			if err != nil {
				return err
			}
			if len(attempts) > 0 {
				fmt.Println("\nAttempts:")
			}
			for _, a := range attempts {
				label := ""
				if a.Label != "" {
					label = "  [" + a.Label + "]"
				}
				forced := ""
				if a.Forced {
					forced = " (forced)"
				}
				fmt.Printf("  %s  %s%s  tools=%d calls=%d tokens=%d/%d%s\n",
					a.ID, a.Outcome, forced, a.ToolCalls, a.ProviderCalls,
					a.InputTokens, a.OutputTokens, label)
			}
			return nil
		})
	},
}

// transcriptCmd prints the stored conversation of one attempt.
var transcriptCmd = &cobra.Command{
	Use:     "transcript <run-id> <attempt-id>",
	Short:   "Print the stored transcript of an attempt",
	Aliases: []string{"print-tool-calls"},
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, db *store.Store) error {
			attempts, err := db.ListAttempts(ctx, args[0])
			if err != nil {
				return err
			}
			for _, a := range attempts {
				if a.ID == args[1] {
					fmt.Println(a.Transcript)
					return nil
				}
			}
			return fmt.Errorf("attempt %s not found in run %s", args[1], args[0])
		})
	},
}

// labelCmd tags an attempt during manual review, e.g. to mark anomalies
// worth excluding from analysis.
var labelCmd = &cobra.Command{
	Use:   "label <run-id> <attempt-id> <label>",
	Short: "Attach a review label to a stored attempt",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, db *store.Store) error {
			if err := db.LabelAttempt(ctx, args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Printf("Labeled attempt %s as %q\n", args[1], args[2])
			return nil
		})
	},
}
