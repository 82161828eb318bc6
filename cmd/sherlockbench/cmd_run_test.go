// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/attempt"
	"github.com/sherlockbench/sherlockbench-go/services/bench/run"
)

func TestPrintResult(t *testing.T) {
	result := &run.Result{
		RunID:        "run-1",
		RunType:      "official",
		Score:        api.Score{Numerator: 2, Denominator: 3},
		Percent:      66.7,
		RunTime:      "4m12s",
		ProblemNames: []string{"add", "is-prime", "concat"},
		APICalls:     41,
		Attempts: []*attempt.Attempt{
			{ID: "a1", Outcome: attempt.OutcomeCorrect, ToolCalls: 4, ProviderCalls: 6},
			{ID: "a2", Outcome: attempt.OutcomeIncorrect, Forced: true, ToolCalls: 7, ProviderCalls: 11},
		},
	}

	var buf strings.Builder
	printResult(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Run run-1 complete (official)")
	assert.Contains(t, out, "Score: 2/3 (66.7%)")
	assert.Contains(t, out, "Time:  4m12s")
	assert.Contains(t, out, "Provider API calls: 41")
	assert.Contains(t, out, "(forced)")
	assert.Contains(t, out, "Problems: add, is-prime, concat")
}
