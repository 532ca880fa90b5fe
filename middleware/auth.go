// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/logging"
)

// RequireAuth verifies the bearer token and stores the authenticated account
// in the request context.
func RequireAuth(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				ErrorResponse(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}

			claims, err := tm.Parse(strings.TrimSpace(token))
			if err != nil {
				logging.Ctx(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				ErrorResponse(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := auth.WithAccount(r.Context(), auth.FromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole asks the enforcer whether the caller's role may reach the
// requested path and method. It must run after RequireAuth.
func RequireRole(enforcer *auth.Enforcer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := auth.AccountFromContext(r.Context())
			if !ok {
				ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			allowed, err := enforcer.Allowed(acct.Role, r.URL.Path, r.Method)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("policy evaluation failed")
				ErrorResponse(w, http.StatusInternalServerError, "Authorization error")
				return
			}
			if !allowed {
				logging.Ctx(r.Context()).Warn().
					Str("account_id", acct.ID).
					Str("role", acct.Role).
					Str("path", r.URL.Path).
					Msg("access denied")
				ErrorResponse(w, http.StatusForbidden, "You do not have access to this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
