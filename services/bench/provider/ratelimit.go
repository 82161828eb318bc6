// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provider

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// RateLimited wraps an adapter with a client-side request rate limit and a
// request counter. Run-level accounting reads the counter after the run; the
// limiter smooths bursts across concurrent attempts sharing one adapter.
type RateLimited struct {
	inner   Adapter
	limiter *rate.Limiter
	calls   atomic.Int64
}

// NewRateLimited wraps inner so Send blocks until the limiter admits the
// request. requestsPerSecond <= 0 disables limiting but keeps the counter.
func NewRateLimited(inner Adapter, requestsPerSecond float64, burst int) *RateLimited {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &RateLimited{inner: inner, limiter: limiter}
}

// Send implements Adapter.
func (r *RateLimited) Send(ctx context.Context, req *Request) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	r.calls.Add(1)
	return r.inner.Send(ctx, req)
}

// Name implements Adapter.
func (r *RateLimited) Name() string { return r.inner.Name() }

// Model implements Adapter.
func (r *RateLimited) Model() string { return r.inner.Model() }

// Calls returns the number of requests admitted so far.
func (r *RateLimited) Calls() int64 { return r.calls.Load() }

var _ Adapter = (*RateLimited)(nil)
