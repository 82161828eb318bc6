// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerThreePhasePath(t *testing.T) {
	c := NewController(ModeThreePhase)
	assert.Equal(t, PhaseInvestigating, c.Current())
	assert.Equal(t, PhaseSummarizing, c.AfterInvestigation())

	require.NoError(t, c.Transition(PhaseSummarizing, "ready"))
	require.NoError(t, c.Transition(PhaseVerifying, "summary captured"))
	require.NoError(t, c.Transition(PhaseDone, "verified"))
	assert.Equal(t, PhaseDone, c.Current())
}

func TestControllerTwoPhaseSkipsSummarizing(t *testing.T) {
	c := NewController(ModeTwoPhase)
	assert.Equal(t, PhaseVerifying, c.AfterInvestigation())

	err := c.Transition(PhaseSummarizing, "ready")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, c.Transition(PhaseVerifying, "ready"))
	assert.Equal(t, PhaseVerifying, c.Current())
}

func TestControllerThreePhaseCannotSkipSummary(t *testing.T) {
	c := NewController(ModeThreePhase)
	err := c.Transition(PhaseVerifying, "shortcut")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, PhaseInvestigating, c.Current())
}

func TestControllerAnyPhaseCanAbort(t *testing.T) {
	for _, mode := range []Mode{ModeTwoPhase, ModeThreePhase} {
		c := NewController(mode)
		assert.True(t, c.CanTransition(PhaseDone), "mode %s", mode)
		require.NoError(t, c.Transition(PhaseDone, "aborted"))
	}
}

func TestControllerNoTransitionsOutOfDone(t *testing.T) {
	c := NewController(ModeTwoPhase)
	require.NoError(t, c.Transition(PhaseDone, "aborted"))

	for _, p := range AllPhases() {
		assert.False(t, c.CanTransition(p), "to %s", p)
	}
}
