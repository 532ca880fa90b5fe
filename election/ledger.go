// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/metrics"
	"github.com/danielhkuo/campus-vote/models"
)

// CastVote validates the ballot and appends it to the ledger.
//
// The pre-checks alone do not stop two racing requests for the same
// (account, position); the UNIQUE constraint on vote does. A violation of
// that constraint is reported as AlreadyVoted, so a retried request that
// already committed sees AlreadyVoted rather than a second vote.
func (s *Service) CastVote(ctx context.Context, accountID, positionID, candidateID, ipHash string) (models.Vote, error) {
	vote := models.Vote{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		PositionID:  positionID,
		CandidateID: candidateID,
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.validate(ctx, tx, accountID, positionID, candidateID); err != nil {
			return err
		}
		vote.VotedAt = s.now()
		return insertVote(ctx, tx, vote, ipHash)
	})
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			metrics.BallotRejections.WithLabelValues(string(rej.Reason)).Inc()
			logging.Ctx(ctx).Info().
				Str("account_id", accountID).
				Str("position_id", positionID).
				Str("reason", string(rej.Reason)).
				Msg("ballot rejected")
		}
		return models.Vote{}, err
	}

	metrics.VotesCast.Inc()
	logging.Ctx(ctx).Info().
		Str("vote_id", vote.ID).
		Str("account_id", accountID).
		Str("position_id", positionID).
		Msg("vote cast")
	return vote, nil
}

func insertVote(ctx context.Context, q querier, v models.Vote, ipHash string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO vote (id, account_id, position_id, candidate_id, voted_at, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.AccountID, v.PositionID, v.CandidateID, v.VotedAt, nullString(ipHash))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", ErrAlreadyVoted, ErrConflict)
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

// HasVoted reports whether accountID already has a vote for positionID.
func (s *Service) HasVoted(ctx context.Context, accountID, positionID string) (bool, error) {
	return hasVoted(ctx, s.db, accountID, positionID)
}

// CountsByCandidate tallies one position. Every candidate of the position is
// present, including those with no votes.
func (s *Service) CountsByCandidate(ctx context.Context, positionID string) (map[string]int, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM position WHERE id = $1`, positionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", positionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, COUNT(v.id)
		FROM candidate c
		LEFT JOIN vote v ON v.candidate_id = c.id AND v.position_id = c.position_id
		WHERE c.position_id = $1
		GROUP BY c.id
	`, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally position: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var candidateID string
		var n int
		if err := rows.Scan(&candidateID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		counts[candidateID] = n
	}
	return counts, rows.Err()
}

// CountsByPosition tallies every position: positionID -> candidateID -> count.
// A position without candidates maps to an empty map.
func (s *Service) CountsByPosition(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, c.id, COUNT(v.id)
		FROM position p
		LEFT JOIN candidate c ON c.position_id = p.id
		LEFT JOIN vote v ON v.candidate_id = c.id AND v.position_id = p.id
		GROUP BY p.id, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to tally positions: %w", err)
	}
	defer rows.Close()

	results := make(map[string]map[string]int)
	for rows.Next() {
		var positionID string
		var candidateID sql.NullString
		var n int
		if err := rows.Scan(&positionID, &candidateID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		if results[positionID] == nil {
			results[positionID] = make(map[string]int)
		}
		if candidateID.Valid {
			results[positionID][candidateID.String] = n
		}
	}
	return results, rows.Err()
}

// DetailedResults is the tally with titles and names, ordered for display:
// positions by title, candidates by votes descending.
func (s *Service) DetailedResults(ctx context.Context) ([]models.PositionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.title, c.id, c.full_name, c.nickname, COUNT(v.id) AS votes
		FROM position p
		LEFT JOIN candidate c ON c.position_id = p.id
		LEFT JOIN vote v ON v.candidate_id = c.id AND v.position_id = p.id
		GROUP BY p.id, p.title, c.id, c.full_name, c.nickname
		ORDER BY p.title, p.id, votes DESC, c.full_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	results := []models.PositionResult{}
	index := make(map[string]int)
	for rows.Next() {
		var positionID, title string
		var candidateID, name, nickname sql.NullString
		var n int
		if err := rows.Scan(&positionID, &title, &candidateID, &name, &nickname, &n); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		i, ok := index[positionID]
		if !ok {
			i = len(results)
			index[positionID] = i
			results = append(results, models.PositionResult{
				PositionID: positionID,
				Title:      title,
				Candidates: []models.CandidateResult{},
			})
		}
		if !candidateID.Valid {
			continue
		}
		results[i].TotalVotes += n
		results[i].Candidates = append(results[i].Candidates, models.CandidateResult{
			CandidateID: candidateID.String,
			FullName:    name.String,
			Nickname:    nullable(nickname),
			Votes:       n,
		})
	}
	return results, rows.Err()
}

// VotesByAccount lists the caller's own ballot, oldest first.
func (s *Service) VotesByAccount(ctx context.Context, accountID string) ([]models.MyVote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.position_id, p.title, v.candidate_id, c.full_name, v.voted_at
		FROM vote v
		JOIN position p ON p.id = v.position_id
		JOIN candidate c ON c.id = v.candidate_id
		WHERE v.account_id = $1
		ORDER BY v.voted_at
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}
	defer rows.Close()

	votes := []models.MyVote{}
	for rows.Next() {
		var v models.MyVote
		if err := rows.Scan(&v.PositionID, &v.PositionTitle, &v.CandidateID, &v.CandidateName, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}
