// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import "errors"

// Sentinel errors for the attempt engine.
var (
	// ErrInvalidTransition indicates a phase transition outside the mode's
	// transition table.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrRetryCeiling indicates a retryable provider failure persisted
	// past the backoff ceiling.
	ErrRetryCeiling = errors.New("retry ceiling exceeded")

	// ErrCorrectionBudget indicates the model spent its per-phase budget
	// of correctable mistakes (malformed tool calls, bad submissions).
	ErrCorrectionBudget = errors.New("correction budget exhausted")

	// ErrTurnBudget indicates a phase hit its turn ceiling without the
	// loop reaching a phase-exit signal.
	ErrTurnBudget = errors.New("turn budget exhausted")

	// ErrDanglingToolCalls indicates an attempt to extend or reset the
	// transcript while an assistant turn still has unresolved tool calls.
	ErrDanglingToolCalls = errors.New("transcript has unresolved tool calls")
)
