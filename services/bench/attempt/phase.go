// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"fmt"
	"log/slog"
	"sync"
)

// Controller manages valid phase transitions for one attempt.
//
// The controller enforces the following transition graph:
//
//	three-phase: INVESTIGATING → SUMMARIZING → VERIFYING → DONE
//	two-phase:   INVESTIGATING → VERIFYING → DONE
//	* → DONE : any phase may finalize (abort path)
//
// The transcript reset in three-phase mode happens exactly on the
// SUMMARIZING → VERIFYING edge and nowhere else; the controller owns the
// edges, the orchestrator owns the side effects.
//
// Thread Safety:
//
//	Controller is safe for concurrent use.
type Controller struct {
	mu      sync.RWMutex
	mode    Mode
	current Phase

	// transitions maps valid (from, to) pairs.
	transitions map[Phase]map[Phase]bool
}

// NewController creates a controller in PhaseInvestigating.
//
// Inputs:
//
//	mode - The context-management policy; decides whether SUMMARIZING
//	       is on the path.
//
// Outputs:
//
//	*Controller - Configured controller.
func NewController(mode Mode) *Controller {
	c := &Controller{
		mode:        mode,
		current:     PhaseInvestigating,
		transitions: make(map[Phase]map[Phase]bool),
	}
	for _, p := range AllPhases() {
		c.transitions[p] = make(map[Phase]bool)
	}

	if mode == ModeThreePhase {
		c.addTransition(PhaseInvestigating, PhaseSummarizing)
		c.addTransition(PhaseSummarizing, PhaseVerifying)
	} else {
		c.addTransition(PhaseInvestigating, PhaseVerifying)
	}

	// any phase may abort straight to DONE
	for _, p := range AllPhases() {
		if p != PhaseDone {
			c.addTransition(p, PhaseDone)
		}
	}

	return c
}

func (c *Controller) addTransition(from, to Phase) {
	c.transitions[from][to] = true
}

// Mode returns the controller's phase mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Current returns the current phase.
func (c *Controller) Current() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// CanTransition checks whether moving to the given phase is valid now.
func (c *Controller) CanTransition(to Phase) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transitions[c.current][to]
}

// Transition moves to the given phase.
//
// Outputs:
//
//	error - ErrInvalidTransition if the edge is not in the mode's table.
func (c *Controller) Transition(to Phase, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.transitions[c.current][to] {
		return fmt.Errorf("%w: %s -> %s (%s mode)", ErrInvalidTransition, c.current, to, c.mode)
	}

	slog.Debug("Phase transition", "from", c.current, "to", to, "reason", reason)
	c.current = to
	return nil
}

// AfterInvestigation returns the phase that follows INVESTIGATING under
// the controller's mode.
func (c *Controller) AfterInvestigation() Phase {
	if c.mode == ModeThreePhase {
		return PhaseSummarizing
	}
	return PhaseVerifying
}
