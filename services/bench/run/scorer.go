// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package run

import (
	"context"
	"fmt"

	"github.com/sherlockbench/sherlockbench-go/services/bench/api"
	"github.com/sherlockbench/sherlockbench-go/services/bench/attempt"
)

// serverScorer judges predictions by asking the benchmark server.
type serverScorer struct {
	client    *api.Client
	attemptID string
}

func newServerScorer(client *api.Client, attemptID string) *serverScorer {
	return &serverScorer{client: client, attemptID: attemptID}
}

// Next implements attempt.Scorer.
func (s *serverScorer) Next(ctx context.Context) (*attempt.VerificationCase, error) {
	resp, err := s.client.NextVerification(ctx, s.attemptID)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &attempt.VerificationCase{Inputs: resp.Inputs, OutputType: resp.OutputType}, nil
}

// Score implements attempt.Scorer.
func (s *serverScorer) Score(ctx context.Context, prediction any) (string, error) {
	resp, err := s.client.AttemptVerification(ctx, s.attemptID, prediction)
	if err != nil {
		return "", err
	}
	switch resp.Status {
	case api.VerificationCorrect, api.VerificationWrong, api.VerificationDone:
		return resp.Status, nil
	default:
		return "", fmt.Errorf("unexpected verification status %q", resp.Status)
	}
}

var _ attempt.Scorer = (*serverScorer)(nil)
