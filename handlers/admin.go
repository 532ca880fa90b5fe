// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/middleware"
	"github.com/danielhkuo/campus-vote/models"
	"github.com/danielhkuo/campus-vote/validation"
	"github.com/danielhkuo/campus-vote/verification"
)

// maxCandidateImage bounds candidate photos uploaded by admins.
const maxCandidateImage = 5 << 20

type AdminHandler struct {
	svc   *election.Service
	gate  *election.Gate
	store verification.ObjectStore
}

// NewAdminHandler creates the admin handler. store may be nil, in which case
// candidate images are rejected.
func NewAdminHandler(svc *election.Service, gate *election.Gate, store verification.ObjectStore) *AdminHandler {
	return &AdminHandler{svc: svc, gate: gate, store: store}
}

// CreatePosition handles POST /admin/positions
func (h *AdminHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePositionRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	position, err := h.svc.CreatePosition(r.Context(), req.Title, req.Description, req.MaxVotes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, position)
}

// ListPositions handles GET /admin/positions
func (h *AdminHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.ListPositions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, positions)
}

// DeletePosition handles DELETE /admin/positions/{id}
func (h *AdminHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeletePosition(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Position deleted"})
}

// CreateCandidate handles POST /admin/candidates
// Accepts JSON, or a multipart form with the same fields and an optional "image" part.
func (h *AdminHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	var (
		req      models.CreateCandidateRequest
		imageURL string
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		var err error
		req, imageURL, err = h.candidateForm(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	candidate, err := h.svc.CreateCandidate(r.Context(), election.NewCandidate{
		PositionID:   req.PositionID,
		FullName:     req.FullName,
		MatricNumber: req.MatricNumber,
		Nickname:     req.Nickname,
		ImageURL:     imageURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, candidate)
}

// candidateForm reads candidate fields from a multipart form and stores the
// image, if one was sent.
func (h *AdminHandler) candidateForm(w http.ResponseWriter, r *http.Request) (models.CreateCandidateRequest, string, error) {
	if err := parseMultipart(w, r, maxCandidateImage); err != nil {
		return models.CreateCandidateRequest{}, "", err
	}
	defer r.MultipartForm.RemoveAll()

	req := models.CreateCandidateRequest{
		PositionID:   r.FormValue("positionId"),
		FullName:     r.FormValue("fullName"),
		MatricNumber: r.FormValue("matricNumber"),
		Nickname:     r.FormValue("nickname"),
	}
	if len(r.MultipartForm.File["image"]) == 0 {
		return req, "", nil
	}

	upload, err := formFile(r, "image", maxCandidateImage)
	if err != nil {
		return req, "", err
	}
	if int64(len(upload.Data)) > maxCandidateImage {
		return req, "", fmt.Errorf("%w: image exceeds %s", verification.ErrInvalidUpload, humanize.IBytes(maxCandidateImage))
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return req, "", fmt.Errorf("%w: candidate photo must be an image", verification.ErrInvalidUpload)
	}
	if h.store == nil {
		return req, "", fmt.Errorf("%w: image uploads are not configured", verification.ErrInvalidUpload)
	}

	url, err := h.store.Put(r.Context(), "candidates", upload)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to store candidate image")
		return req, "", fmt.Errorf("%w: %w", verification.ErrUpstream, err)
	}
	return req, url, nil
}

// ListCandidates handles GET /admin/candidates?positionId=
func (h *AdminHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.svc.ListCandidates(r.Context(), r.URL.Query().Get("positionId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, candidates)
}

// UpdateCandidate handles PATCH /admin/candidates/{id}
func (h *AdminHandler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}

	var req models.UpdateCandidateRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.SetCandidateActive(r.Context(), id, *req.IsActive); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Candidate updated"})
}

// DeleteCandidate handles DELETE /admin/candidates/{id}
func (h *AdminHandler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteCandidate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Candidate deleted"})
}

// CreateSession handles POST /admin/voting-sessions
func (h *AdminHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	var req models.CreateSessionRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := h.svc.CreateSession(r.Context(), acct.ID, req.Title, req.Description, req.StartTime, req.EndTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, session)
}

// ListSessions handles GET /admin/voting-sessions
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.svc.ListSessions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, sessions)
}

// StartSession handles POST /admin/voting-sessions/{id}/start
// Every other session is deactivated in the same transaction.
func (h *AdminHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.StartSession(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Voting session started"})
}

// EndSession handles POST /admin/voting-sessions/{id}/end
func (h *AdminHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.EndSession(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Voting session ended"})
}

// Results handles GET /admin/results
// Returns positionId -> candidateId -> count, zero counts included.
func (h *AdminHandler) Results(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.CountsByPosition(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse(counts))
}

// DetailedResults handles GET /admin/results/detailed
func (h *AdminHandler) DetailedResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.DetailedResults(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, results)
}

// Users handles GET /admin/users
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.gate.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, accounts)
}
