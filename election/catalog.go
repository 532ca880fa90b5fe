// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/models"
)

const positionColumns = `id, title, description, max_votes, active, created_at`

func scanPosition(row scanner) (models.Position, error) {
	var p models.Position
	var description sql.NullString
	if err := row.Scan(&p.ID, &p.Title, &description, &p.MaxVotes, &p.Active, &p.CreatedAt); err != nil {
		return models.Position{}, err
	}
	p.Description = nullable(description)
	return p, nil
}

const candidateColumns = `id, position_id, full_name, matric_number, nickname, image_url, active, created_at`

func scanCandidate(row scanner) (models.Candidate, error) {
	var c models.Candidate
	var matric, nickname, image sql.NullString
	if err := row.Scan(&c.ID, &c.PositionID, &c.FullName, &matric, &nickname, &image, &c.Active, &c.CreatedAt); err != nil {
		return models.Candidate{}, err
	}
	c.MatricNumber = nullable(matric)
	c.Nickname = nullable(nickname)
	c.ImageURL = nullable(image)
	return c, nil
}

func queryPositions(ctx context.Context, q querier, where string, args ...any) ([]models.Position, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+positionColumns+` FROM position `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func queryCandidates(ctx context.Context, q querier, where string, args ...any) ([]models.Candidate, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+candidateColumns+` FROM candidate `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// CreatePosition adds a position. maxVotes below one defaults to one.
func (s *Service) CreatePosition(ctx context.Context, title, description string, maxVotes int) (models.Position, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Position{}, fmt.Errorf("position title is required: %w", ErrValidation)
	}
	if maxVotes < 1 {
		maxVotes = 1
	}

	p := models.Position{
		ID:          uuid.NewString(),
		Title:       title,
		Description: nullable(nullString(description)),
		MaxVotes:    maxVotes,
		Active:      true,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO position (id, title, description, max_votes, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`, p.ID, p.Title, nullString(description), p.MaxVotes, p.CreatedAt)
	if err != nil {
		return models.Position{}, fmt.Errorf("failed to insert position: %w", err)
	}

	logging.Info().Str("position_id", p.ID).Str("title", p.Title).Msg("position created")
	return p, nil
}

// ListPositions returns every position with all of its candidates.
func (s *Service) ListPositions(ctx context.Context) ([]models.Position, error) {
	positions, err := queryPositions(ctx, s.db, `ORDER BY title`)
	if err != nil {
		return nil, err
	}
	candidates, err := queryCandidates(ctx, s.db, `ORDER BY full_name`)
	if err != nil {
		return nil, err
	}

	byPosition := make(map[string][]models.Candidate)
	for _, c := range candidates {
		byPosition[c.PositionID] = append(byPosition[c.PositionID], c)
	}
	for i := range positions {
		positions[i].Candidates = byPosition[positions[i].ID]
	}
	return positions, nil
}

// DeletePosition removes a position and its candidates. Positions with
// recorded votes cannot be deleted.
func (s *Service) DeletePosition(ctx context.Context, id string) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM position WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("position %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load position: %w", err)
		}

		var votes int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote WHERE position_id = $1`, id).Scan(&votes); err != nil {
			return fmt.Errorf("failed to count votes: %w", err)
		}
		if votes > 0 {
			return fmt.Errorf("position has %d recorded votes: %w", votes, ErrPrecondition)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM position WHERE id = $1`, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return fmt.Errorf("position has recorded votes: %w", ErrPrecondition)
			}
			return fmt.Errorf("failed to delete position: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info().Str("position_id", id).Msg("position deleted")
	return nil
}

// NewCandidate describes a candidate to add.
type NewCandidate struct {
	PositionID   string
	FullName     string
	MatricNumber string
	Nickname     string
	ImageURL     string
}

// CreateCandidate adds an active candidate to an existing position.
// Candidate matriculation numbers are unique.
func (s *Service) CreateCandidate(ctx context.Context, in NewCandidate) (models.Candidate, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.MatricNumber = strings.TrimSpace(in.MatricNumber)
	if in.FullName == "" {
		return models.Candidate{}, fmt.Errorf("candidate name is required: %w", ErrValidation)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM position WHERE id = $1`, in.PositionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Candidate{}, fmt.Errorf("position %s: %w", in.PositionID, ErrNotFound)
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("failed to load position: %w", err)
	}

	if in.MatricNumber != "" {
		var n int
		if err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM candidate WHERE matric_number = $1
		`, in.MatricNumber).Scan(&n); err != nil {
			return models.Candidate{}, fmt.Errorf("failed to check candidate matric: %w", err)
		}
		if n > 0 {
			return models.Candidate{}, fmt.Errorf("a candidate with this matriculation number exists: %w", ErrConflict)
		}
	}

	c := models.Candidate{
		ID:           uuid.NewString(),
		PositionID:   in.PositionID,
		FullName:     in.FullName,
		MatricNumber: nullable(nullString(in.MatricNumber)),
		Nickname:     nullable(nullString(in.Nickname)),
		ImageURL:     nullable(nullString(in.ImageURL)),
		Active:       true,
		CreatedAt:    s.now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidate (id, position_id, full_name, matric_number, nickname, image_url, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
	`, c.ID, c.PositionID, c.FullName, nullString(in.MatricNumber), nullString(in.Nickname), nullString(in.ImageURL), c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Candidate{}, fmt.Errorf("a candidate with this matriculation number exists: %w", ErrConflict)
		}
		return models.Candidate{}, fmt.Errorf("failed to insert candidate: %w", err)
	}

	logging.Info().Str("candidate_id", c.ID).Str("position_id", c.PositionID).Msg("candidate created")
	return c, nil
}

// ListCandidates returns candidates of one position, or all when positionID is empty.
func (s *Service) ListCandidates(ctx context.Context, positionID string) ([]models.Candidate, error) {
	if positionID == "" {
		return queryCandidates(ctx, s.db, `ORDER BY full_name`)
	}
	return queryCandidates(ctx, s.db, `WHERE position_id = $1 ORDER BY full_name`, positionID)
}

// SetCandidateActive enables or withdraws a candidate from future ballots.
// Votes already cast for the candidate are kept.
func (s *Service) SetCandidateActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE candidate SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteCandidate removes a candidate without votes.
func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM candidate WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load candidate: %w", err)
		}

		var votes int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM vote WHERE candidate_id = $1`, id).Scan(&votes); err != nil {
			return fmt.Errorf("failed to count votes: %w", err)
		}
		if votes > 0 {
			return fmt.Errorf("candidate has %d recorded votes: %w", votes, ErrPrecondition)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM candidate WHERE id = $1`, id); err != nil {
			if db.IsForeignKeyViolation(err) {
				return fmt.Errorf("candidate has recorded votes: %w", ErrPrecondition)
			}
			return fmt.Errorf("failed to delete candidate: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info().Str("candidate_id", id).Msg("candidate deleted")
	return nil
}

// Ballot lists active positions with their active candidates and whether
// accountID has already voted in each. hasVoted is informational; CastVote
// re-checks it.
func (s *Service) Ballot(ctx context.Context, accountID string) ([]models.BallotPosition, error) {
	positions, err := queryPositions(ctx, s.db, `WHERE active = TRUE ORDER BY title`)
	if err != nil {
		return nil, err
	}
	candidates, err := queryCandidates(ctx, s.db, `WHERE active = TRUE ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	voted, err := s.votedPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byPosition := make(map[string][]models.Candidate)
	for _, c := range candidates {
		byPosition[c.PositionID] = append(byPosition[c.PositionID], c)
	}

	ballot := make([]models.BallotPosition, 0, len(positions))
	for _, p := range positions {
		cands := byPosition[p.ID]
		if cands == nil {
			cands = []models.Candidate{}
		}
		ballot = append(ballot, models.BallotPosition{
			ID:          p.ID,
			Title:       p.Title,
			Description: p.Description,
			MaxVotes:    p.MaxVotes,
			HasVoted:    voted[p.ID],
			Candidates:  cands,
		})
	}
	return ballot, nil
}

func (s *Service) votedPositions(ctx context.Context, accountID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position_id FROM vote WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}
	defer rows.Close()

	voted := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		voted[id] = true
	}
	return voted, rows.Err()
}
