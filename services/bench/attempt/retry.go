// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

// RetryPolicy controls backoff for retryable provider failures.
//
// Only rate limits and transient faults are retried; everything else
// surfaces immediately. Past the ceiling the failure escalates to
// ErrRetryCeiling and the attempt aborts.
type RetryPolicy struct {
	// MaxRetries is how many times a failed call is retried. Zero means
	// fail on the first error.
	MaxRetries int

	// BaseDelay is the first backoff interval.
	BaseDelay time.Duration

	// MaxDelay caps the backoff interval.
	MaxDelay time.Duration

	// Jitter adds up to this fraction of the interval as random noise so
	// concurrent attempts do not retry in lockstep.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used unless configured otherwise.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		Jitter:     0.2,
	}
}

// Do runs fn, retrying retryable failures with exponential backoff.
//
// Outputs:
//
//	error - nil on success; the last error wrapped with ErrRetryCeiling
//	        when retries are spent; the original error for non-retryable
//	        failures; the context error if cancelled while waiting.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for try := 0; try <= p.MaxRetries; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !provider.IsRetryable(lastErr) {
			return lastErr
		}
		if try == p.MaxRetries {
			break
		}

		wait := delay
		if p.Jitter > 0 {
			wait += time.Duration(rand.Float64() * p.Jitter * float64(delay))
		}
		slog.Warn("Provider call failed, backing off",
			"try", try+1,
			"max_retries", p.MaxRetries,
			"wait", wait,
			"error", lastErr,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%w: %v", ErrRetryCeiling, lastErr)
}
