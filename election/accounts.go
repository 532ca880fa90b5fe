// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/models"
)

// Profile is what the identity provider tells us about a signed-in user.
type Profile struct {
	ExternalID      string
	Email           string
	FullName        string
	ProfileImageURL string
	Admin           bool
}

// UpsertAccount creates the account on first sign-in and refreshes the
// identity fields afterwards. Verification state is never touched here and
// admin rights are only ever granted, not revoked.
func (g *Gate) UpsertAccount(ctx context.Context, p Profile) (models.Account, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" || p.ExternalID == "" {
		return models.Account{}, fmt.Errorf("email and external id are required: %w", ErrValidation)
	}
	now := g.now()

	_, err := g.db.ExecContext(ctx, `
		INSERT INTO account (id, external_id, email, full_name, profile_image_url, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (email) DO UPDATE SET
			external_id = excluded.external_id,
			profile_image_url = excluded.profile_image_url,
			is_admin = account.is_admin OR excluded.is_admin,
			updated_at = excluded.updated_at
	`, uuid.NewString(), p.ExternalID, email, strings.TrimSpace(p.FullName), nullString(p.ProfileImageURL), p.Admin, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return models.Account{}, fmt.Errorf("identity is linked to a different email: %w", ErrConflict)
		}
		return models.Account{}, fmt.Errorf("failed to upsert account: %w", err)
	}

	a, err := scanAccount(g.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM account WHERE email = $1`, email))
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return a, nil
}

// ListAccounts returns every account, newest first.
func (g *Gate) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM account ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
