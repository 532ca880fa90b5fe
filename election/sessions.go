// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/metrics"
	"github.com/danielhkuo/campus-vote/models"
)

// IsVotingOpen reports whether any session is flagged active and now lies
// within its closed [start, end] window. An active flag outside the window
// does not open voting.
func IsVotingOpen(now time.Time, sessions []models.VotingSession) bool {
	for _, s := range sessions {
		if s.Active && !now.Before(s.StartTime) && !now.After(s.EndTime) {
			return true
		}
	}
	return false
}

const sessionColumns = `id, title, description, start_time, end_time, active, created_by, created_at`

func scanSession(row scanner) (models.VotingSession, error) {
	var s models.VotingSession
	var description, createdBy sql.NullString
	if err := row.Scan(&s.ID, &s.Title, &description, &s.StartTime, &s.EndTime, &s.Active, &createdBy, &s.CreatedAt); err != nil {
		return models.VotingSession{}, err
	}
	s.Description = nullable(description)
	s.CreatedBy = nullable(createdBy)
	return s, nil
}

func querySessions(ctx context.Context, q querier, where string, args ...any) ([]models.VotingSession, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+sessionColumns+` FROM voting_session `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query voting sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.VotingSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voting session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (s *Service) isVotingOpen(ctx context.Context, q querier) (bool, error) {
	active, err := querySessions(ctx, q, `WHERE active = TRUE`)
	if err != nil {
		return false, err
	}
	return IsVotingOpen(s.now(), active), nil
}

// IsVotingOpen evaluates the session clock against stored sessions.
func (s *Service) IsVotingOpen(ctx context.Context) (bool, error) {
	return s.isVotingOpen(ctx, s.db)
}

// CurrentSession returns the session that currently permits voting, or nil.
func (s *Service) CurrentSession(ctx context.Context) (*models.VotingSession, error) {
	active, err := querySessions(ctx, s.db, `WHERE active = TRUE`)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range active {
		if IsVotingOpen(now, active[i:i+1]) {
			return &active[i], nil
		}
	}
	return nil, nil
}

func (s *Service) ListSessions(ctx context.Context) ([]models.VotingSession, error) {
	return querySessions(ctx, s.db, `ORDER BY start_time DESC`)
}

// CreateSession stores an inactive session. Sessions are opened with StartSession.
func (s *Service) CreateSession(ctx context.Context, createdBy, title, description string, start, end time.Time) (models.VotingSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.VotingSession{}, fmt.Errorf("session title is required: %w", ErrValidation)
	}
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return models.VotingSession{}, fmt.Errorf("session end time must be after start time: %w", ErrValidation)
	}

	session := models.VotingSession{
		ID:          uuid.NewString(),
		Title:       title,
		Description: nullable(nullString(description)),
		StartTime:   start,
		EndTime:     end,
		CreatedBy:   nullable(nullString(createdBy)),
		CreatedAt:   s.now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO voting_session (id, title, description, start_time, end_time, active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
	`, session.ID, session.Title, nullString(description), start, end, nullString(createdBy), session.CreatedAt)
	if err != nil {
		return models.VotingSession{}, fmt.Errorf("failed to insert voting session: %w", err)
	}

	logging.Info().Str("session_id", session.ID).Time("start", start).Time("end", end).Msg("voting session created")
	return session, nil
}

// StartSession makes id the only active session. The existence check, the
// deactivation of every other session and the activation run in one
// transaction, so a failure leaves the previous configuration in place.
func (s *Service) StartSession(ctx context.Context, id string) error {
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM voting_session WHERE id = $1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("voting session %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load voting session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE voting_session SET active = FALSE WHERE active = TRUE AND id <> $1
		`, id); err != nil {
			return fmt.Errorf("failed to deactivate voting sessions: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE voting_session SET active = TRUE WHERE id = $1
		`, id); err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("another voting session was started concurrently: %w", ErrConflict)
			}
			return fmt.Errorf("failed to activate voting session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.SessionTransitions.WithLabelValues("start").Inc()
	logging.Info().Str("session_id", id).Msg("voting session started")
	return nil
}

// EndSession clears the active flag on id only.
func (s *Service) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE voting_session SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to end voting session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to end voting session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("voting session %s: %w", id, ErrNotFound)
	}

	metrics.SessionTransitions.WithLabelValues("end").Inc()
	logging.Info().Str("session_id", id).Msg("voting session ended")
	return nil
}
