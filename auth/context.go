// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"

	"github.com/danielhkuo/campus-vote/models"
)

// AuthenticatedAccount is resolved once per request from the bearer token and
// handed to handlers; business logic never reads request headers itself.
type AuthenticatedAccount struct {
	ID          string
	Email       string
	Role        string
	IsActivated bool
}

func (a AuthenticatedAccount) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// FromClaims builds the capability from a verified token.
func FromClaims(c *Claims) AuthenticatedAccount {
	return AuthenticatedAccount{
		ID:          c.Subject,
		Email:       c.Email,
		Role:        c.Role,
		IsActivated: c.Activated,
	}
}

type ctxKey struct{}

func WithAccount(ctx context.Context, a AuthenticatedAccount) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// AccountFromContext returns false when the request was not authenticated.
func AccountFromContext(ctx context.Context) (AuthenticatedAccount, bool) {
	a, ok := ctx.Value(ctxKey{}).(AuthenticatedAccount)
	return a, ok
}
