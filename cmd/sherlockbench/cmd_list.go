// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/store"
)

// listCmd prints the problem sets the server offers, grouped by category.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the problem sets available on the benchmark server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(cfg.BaseURL)
		sets, err := client.ProblemSets(cmd.Context())
		if err != nil {
			return err
		}

		categories := make([]string, 0, len(sets.ProblemSets))
		for category := range sets.ProblemSets {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		for _, category := range categories {
			fmt.Printf("%s:\n", category)
			for _, entry := range sets.ProblemSets[category] {
				fmt.Printf("  %s :: %s\n", entry.Name, entry.ID)
			}
			fmt.Println()
		}
		return nil
	},
}

// runsCmd lists runs recorded in the local store.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List locally recorded benchmark runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			score := "-"
			if r.Score != nil {
				score = fmt.Sprintf("%d/%d", r.Score.Numerator, r.Score.Denominator)
			}
			fmt.Printf("%s  %-9s %-10s %-20s %s\n",
				r.ID, r.Status, score, r.Provider+"/"+r.Model,
				r.StartedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}
