// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strings"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/cliparse"
	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/middleware"
	"github.com/danielhkuo/campus-vote/models"
	"github.com/danielhkuo/campus-vote/validation"
)

// IdentitySecretHeader carries the secret shared with the identity provider bridge.
const IdentitySecretHeader = "X-Identity-Secret"

type AuthHandler struct {
	gate   *election.Gate
	tokens *auth.TokenManager
	cfg    cliparse.Config
}

func NewAuthHandler(gate *election.Gate, tokens *auth.TokenManager, cfg cliparse.Config) *AuthHandler {
	return &AuthHandler{gate: gate, tokens: tokens, cfg: cfg}
}

// SignIn handles POST /auth/signin
// Called by the identity provider bridge after it has authenticated the
// user. Creates the account on first sign-in and returns a bearer token.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := auth.ValidateSharedSecret(r.Header.Get(IdentitySecretHeader), h.cfg.IdentitySecret); err != nil {
		logging.Ctx(r.Context()).Warn().Str("remote", middleware.GetClientIP(r)).Msg("sign-in with invalid identity secret")
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid identity provider credentials")
		return
	}

	var req models.SignInRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	acct, err := h.gate.UpsertAccount(r.Context(), election.Profile{
		ExternalID:      req.ExternalID,
		Email:           req.Email,
		FullName:        req.FullName,
		ProfileImageURL: req.ProfileImageURL,
		Admin:           h.cfg.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(req.Email), h.cfg.AdminEmail),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, expires, err := h.tokens.Issue(acct)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("account_id", acct.ID).Bool("admin", acct.IsAdmin).Msg("signed in")
	middleware.JSONResponse(w, http.StatusOK, models.SignInResponse{
		Token:     token,
		ExpiresAt: expires,
		Account:   acct,
	})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	account, err := h.gate.Account(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, account)
}
