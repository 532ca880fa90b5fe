// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/middleware"
	"github.com/danielhkuo/campus-vote/models"
	"github.com/danielhkuo/campus-vote/validation"
	"github.com/danielhkuo/campus-vote/verification"
)

// multipartOverhead is allowed on top of the file limit for part headers
// and boundaries.
const multipartOverhead = 64 << 10

type StudentHandler struct {
	gate     *election.Gate
	verifier *verification.Service
}

func NewStudentHandler(gate *election.Gate, verifier *verification.Service) *StudentHandler {
	return &StudentHandler{gate: gate, verifier: verifier}
}

// UpdateDetails handles POST /student/update-details
func (h *StudentHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	var req models.UpdateDetailsRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.gate.SetDetails(r.Context(), acct.ID, req.MatricNumber, req.FullName); err != nil {
		writeError(w, r, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MessageResponse{Message: "Details updated successfully"})
}

// UploadDocument handles POST /student/upload-document
// Expects a multipart form with a "document" PDF part.
func (h *StudentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	upload, err := readUpload(w, r, "document", h.verifier.MaxDocumentBytes())
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := h.verifier.SubmitDocument(r.Context(), acct.ID, upload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("account_id", acct.ID).Msg("document verified")
	middleware.JSONResponse(w, http.StatusOK, status)
}

// VerifyFace handles POST /student/verify-face
// Expects a multipart form with a "faceImage" image part.
func (h *StudentHandler) VerifyFace(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	upload, err := readUpload(w, r, "faceImage", h.verifier.MaxDocumentBytes())
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := h.verifier.SubmitFace(r.Context(), acct.ID, upload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().Str("account_id", acct.ID).Bool("activated", status.IsActivated).Msg("face verified")
	middleware.JSONResponse(w, http.StatusOK, status)
}

// VerificationStatus handles GET /student/verification-status
func (h *StudentHandler) VerificationStatus(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountFrom(w, r)
	if !ok {
		return
	}

	status, err := h.gate.Status(r.Context(), acct.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, status)
}

// readUpload reads one file part of a multipart request, bounding the whole
// body by limit plus multipart framing.
func readUpload(w http.ResponseWriter, r *http.Request, field string, limit int64) (verification.Upload, error) {
	if err := parseMultipart(w, r, limit); err != nil {
		return verification.Upload{}, err
	}
	defer r.MultipartForm.RemoveAll()

	return formFile(r, field, limit)
}

func parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: file exceeds %s", verification.ErrInvalidUpload, humanize.IBytes(uint64(limit)))
		}
		return fmt.Errorf("%w: expected a multipart form", verification.ErrInvalidUpload)
	}
	return nil
}

// formFile reads a file part from an already parsed multipart form. At most
// limit+1 bytes are read so oversized files can still be reported as such.
func formFile(r *http.Request, field string, limit int64) (verification.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return verification.Upload{}, fmt.Errorf("%w: %s file is required", verification.ErrInvalidUpload, field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return verification.Upload{}, fmt.Errorf("%w: failed to read %s", verification.ErrInvalidUpload, field)
	}

	return verification.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
