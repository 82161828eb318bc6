// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: flaky", provider.ErrTransient)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryCeilingEscalates(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("%w: still throttled", provider.ErrRateLimited)
	})
	assert.ErrorIs(t, err, ErrRetryCeiling)
	assert.ErrorIs(t, err, provider.ErrRateLimited)
	assert.Equal(t, 3, calls) // initial + 2 retries
}

func TestRetryDoesNotRetryNonRetryable(t *testing.T) {
	calls := 0
	boom := errors.New("schema bug")
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	policy := RetryPolicy{MaxRetries: 10, BaseDelay: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func() error {
			return fmt.Errorf("%w: down", provider.ErrTransient)
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}
