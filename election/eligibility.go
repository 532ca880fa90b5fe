// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Validate checks whether accountID may vote for candidateID in positionID.
// It returns nil, a *Rejection, or a storage error. Checks run in order and
// stop at the first failure:
//
//  1. account exists and is activated  (NotActivated)
//  2. the session clock is open        (VotingClosed)
//  3. no vote for the position yet     (AlreadyVoted)
//  4. candidate is active and belongs to the position (InvalidCandidate)
func (s *Service) Validate(ctx context.Context, accountID, positionID, candidateID string) error {
	return s.validate(ctx, s.db, accountID, positionID, candidateID)
}

func (s *Service) validate(ctx context.Context, q querier, accountID, positionID, candidateID string) error {
	var activated bool
	err := q.QueryRowContext(ctx, `SELECT activated FROM account WHERE id = $1`, accountID).Scan(&activated)
	if errors.Is(err, sql.ErrNoRows) {
		return reject(ReasonNotActivated)
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !activated {
		return reject(ReasonNotActivated)
	}

	open, err := s.isVotingOpen(ctx, q)
	if err != nil {
		return err
	}
	if !open {
		return reject(ReasonVotingClosed)
	}

	voted, err := hasVoted(ctx, q, accountID, positionID)
	if err != nil {
		return err
	}
	if voted {
		return reject(ReasonAlreadyVoted)
	}

	var n int
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candidate WHERE id = $1 AND position_id = $2 AND active = TRUE
	`, candidateID, positionID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check candidate: %w", err)
	}
	if n == 0 {
		return reject(ReasonInvalidCandidate)
	}
	return nil
}

func hasVoted(ctx context.Context, q querier, accountID, positionID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vote WHERE account_id = $1 AND position_id = $2
	`, accountID, positionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return n > 0, nil
}
