// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// attemptsTotal counts finished attempts by outcome
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_attempts_total",
		Help: "Total finished attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	// attemptDuration tracks attempt wall time
	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bench_attempt_duration_seconds",
		Help:    "Attempt wall time in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
	}, []string{"provider"})

	// providerCallsTotal counts completion requests by provider
	providerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_provider_calls_total",
		Help: "Total provider completion calls",
	}, []string{"provider"})

	// providerRetriesTotal counts retried provider calls
	providerRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_provider_retries_total",
		Help: "Total provider calls that needed at least one retry",
	}, []string{"provider"})

	// toolCallsTotal counts resolved tool calls by tool name
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_tool_calls_total",
		Help: "Total resolved tool calls by tool",
	}, []string{"tool"})

	// correctionsTotal counts agent-correctable mistakes surfaced back
	correctionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_corrections_total",
		Help: "Total correctable mistakes surfaced to the model",
	}, []string{"provider", "kind"})

	// forcedTransitionsTotal counts investigations ended by the turn budget
	forcedTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bench_forced_transitions_total",
		Help: "Total investigations ended by turn-budget exhaustion",
	}, []string{"provider"})
)
