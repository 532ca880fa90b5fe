// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/models"
)

// matricPattern is the institution's nine digit matriculation number, e.g. 190591001.
var matricPattern = regexp.MustCompile(`^\d{9}$`)

// MatricPolicy accepts well-formed matriculation numbers plus an explicit
// allow-list of legacy identifiers that predate the current format.
type MatricPolicy struct {
	legacy map[string]struct{}
}

func NewMatricPolicy(legacy []string) MatricPolicy {
	p := MatricPolicy{legacy: make(map[string]struct{}, len(legacy))}
	for _, id := range legacy {
		if id = strings.ToUpper(strings.TrimSpace(id)); id != "" {
			p.legacy[id] = struct{}{}
		}
	}
	return p
}

// Normalize returns the stored form of matric and whether it is acceptable.
// Legacy identifiers match case-insensitively and are stored upper case, so
// one identity always has one spelling in the UNIQUE column.
func (p MatricPolicy) Normalize(matric string) (string, bool) {
	matric = strings.TrimSpace(matric)
	if matricPattern.MatchString(matric) {
		return matric, true
	}
	canonical := strings.ToUpper(matric)
	if _, ok := p.legacy[canonical]; ok {
		return canonical, true
	}
	return "", false
}

// Valid reports whether matric is acceptable.
func (p MatricPolicy) Valid(matric string) bool {
	_, ok := p.Normalize(matric)
	return ok
}

// Gate drives an account through
//
//	NEW -> HAS_MATRIC -> DOCUMENT_VERIFIED -> ACTIVATED
//
// Every transition is a single guarded UPDATE, so concurrent calls cannot
// skip a step and activation is never undone.
type Gate struct {
	db     *sql.DB
	policy MatricPolicy
	now    Clock
}

func NewGate(db *sql.DB, policy MatricPolicy, now Clock) *Gate {
	if now == nil {
		now = SystemClock
	}
	return &Gate{db: db, policy: policy, now: now}
}

const accountColumns = `id, external_id, email, full_name, matric_number, profile_image_url, document_url,
	document_verified, face_verified, activated, is_admin, created_at`

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	var matric, image, document sql.NullString
	err := row.Scan(&a.ID, &a.ExternalID, &a.Email, &a.FullName, &matric, &image, &document,
		&a.DocumentVerified, &a.FaceVerified, &a.Activated, &a.IsAdmin, &a.CreatedAt)
	if err != nil {
		return models.Account{}, err
	}
	a.MatricNumber = nullable(matric)
	a.ProfileImageURL = nullable(image)
	a.DocumentURL = nullable(document)
	return a, nil
}

// Account loads one account.
func (g *Gate) Account(ctx context.Context, id string) (models.Account, error) {
	a, err := scanAccount(g.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM account WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return a, nil
}

// IsActivated is false for unknown accounts.
func (g *Gate) IsActivated(ctx context.Context, id string) (bool, error) {
	var activated bool
	err := g.db.QueryRowContext(ctx, `SELECT activated FROM account WHERE id = $1`, id).Scan(&activated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load activation: %w", err)
	}
	return activated, nil
}

func (g *Gate) Status(ctx context.Context, id string) (models.VerificationStatus, error) {
	a, err := g.Account(ctx, id)
	if err != nil {
		return models.VerificationStatus{}, err
	}
	return models.VerificationStatus{
		HasMatricNumber:  a.MatricNumber != nil,
		DocumentVerified: a.DocumentVerified,
		FaceVerified:     a.FaceVerified,
		IsActivated:      a.Activated,
	}, nil
}

// SetDetails stores the matriculation number and name. It may be repeated
// until the document has been verified; after that the details are frozen
// because the document check was made against them.
func (g *Gate) SetDetails(ctx context.Context, accountID, matric, fullName string) error {
	fullName = strings.Join(strings.Fields(fullName), " ")

	if fullName == "" {
		return fmt.Errorf("full name is required: %w", ErrValidation)
	}
	canonical, ok := g.policy.Normalize(matric)
	if !ok {
		return fmt.Errorf("matriculation number %q is not in the expected format: %w", strings.TrimSpace(matric), ErrValidation)
	}
	matric = canonical

	var owner string
	err := g.db.QueryRowContext(ctx, `
		SELECT id FROM account WHERE matric_number = $1 AND id <> $2
	`, matric, accountID).Scan(&owner)
	if err == nil {
		return fmt.Errorf("matriculation number is registered to another account: %w", ErrValidation)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check matriculation number: %w", err)
	}

	res, err := g.db.ExecContext(ctx, `
		UPDATE account SET matric_number = $1, full_name = $2, updated_at = $3
		WHERE id = $4 AND document_verified = FALSE
	`, matric, fullName, g.now(), accountID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("matriculation number is registered to another account: %w", ErrValidation)
		}
		return fmt.Errorf("failed to update account details: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update account details: %w", err)
	} else if n == 0 {
		a, err := g.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if a.DocumentVerified {
			return fmt.Errorf("details cannot change after document verification: %w", ErrPrecondition)
		}
	}

	logging.Info().Str("account_id", accountID).Msg("account details updated")
	return nil
}

// RecordDocumentVerified marks the document check as passed. Callers invoke
// it only after the content check succeeded. Repeating it is a no-op.
func (g *Gate) RecordDocumentVerified(ctx context.Context, accountID, documentURL string) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE account SET document_verified = TRUE, document_url = $1, updated_at = $2
		WHERE id = $3 AND matric_number IS NOT NULL AND document_verified = FALSE
	`, documentURL, g.now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to record document verification: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to record document verification: %w", err)
	} else if n == 0 {
		a, err := g.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if a.DocumentVerified {
			return nil
		}
		return fmt.Errorf("matriculation number must be set before document verification: %w", ErrPrecondition)
	}

	logging.Info().Str("account_id", accountID).Msg("document verified")
	return nil
}

// RecordFaceVerified sets face_verified and activated together. It requires a
// verified document and leaves an already activated account untouched.
func (g *Gate) RecordFaceVerified(ctx context.Context, accountID, faceUID string) error {
	res, err := g.db.ExecContext(ctx, `
		UPDATE account SET face_verified = TRUE, activated = TRUE, face_uid = $1, updated_at = $2
		WHERE id = $3 AND document_verified = TRUE AND activated = FALSE
	`, nullString(faceUID), g.now(), accountID)
	if err != nil {
		return fmt.Errorf("failed to record face verification: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to record face verification: %w", err)
	} else if n == 0 {
		a, err := g.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if a.Activated {
			return nil
		}
		return fmt.Errorf("document must be verified before face verification: %w", ErrPrecondition)
	}

	logging.Info().Str("account_id", accountID).Msg("account activated")
	return nil
}
