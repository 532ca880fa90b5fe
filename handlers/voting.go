// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/cliparse"
	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/middleware"
	"github.com/danielhkuo/campus-vote/models"
	"github.com/danielhkuo/campus-vote/validation"
)

type VotingHandler struct {
	svc  *election.Service
	gate *election.Gate
	cfg  cliparse.Config
}

func NewVotingHandler(svc *election.Service, gate *election.Gate, cfg cliparse.Config) *VotingHandler {
	return &VotingHandler{svc: svc, gate: gate, cfg: cfg}
}

// VotingStatus handles GET /voting/voting-status
func (h *VotingHandler) VotingStatus(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.CurrentSession(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.VotingStatusResponse{
		IsActive: session != nil,
		Session:  session,
	})
}

// Positions handles GET /voting/positions
func (h *VotingHandler) Positions(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.activatedAccount(w, r)
	if !ok {
		return
	}

	open, err := h.svc.IsVotingOpen(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !open {
		writeError(w, r, election.ErrVotingClosed)
		return
	}

	ballot, err := h.svc.Ballot(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, ballot)
}

// CastVote handles POST /voting/cast-vote
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.IPHashSalt)
	if _, err := h.svc.CastVote(r.Context(), acct.ID, req.PositionID, req.CandidateID, ipHash); err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Vote cast successfully"})
}

// MyVotes handles GET /voting/my-votes
func (h *VotingHandler) MyVotes(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.activatedAccount(w, r)
	if !ok {
		return
	}

	votes, err := h.svc.VotesByAccount(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, votes)
}

// activatedAccount checks activation against the database, not the token,
// so an account activated after sign-in does not need a new token.
func (h *VotingHandler) activatedAccount(w http.ResponseWriter, r *http.Request) (auth.AuthenticatedAccount, bool) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return acct, false
	}
	activated, err := h.gate.IsActivated(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, err)
		return acct, false
	}
	if !activated {
		writeError(w, r, election.ErrNotActivated)
		return acct, false
	}
	return acct, true
}

func accountFrom(w http.ResponseWriter, r *http.Request) (auth.AuthenticatedAccount, bool) {
	acct, ok := auth.AccountFromContext(r.Context())
	if !ok {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
	}
	return acct, ok
}
