// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/middleware"
	"github.com/danielhkuo/campus-vote/validation"
	"github.com/danielhkuo/campus-vote/verification"
)

// Reason codes for verification refusals. Ballot reasons come from election.
const (
	reasonInvalidUpload    = "invalid_upload"
	reasonDocumentRejected = "document_rejected"
	reasonNoFace           = "no_face"
	reasonDuplicateFace    = "duplicate_face"
)

// writeError maps a service error onto a status code and a stable message.
// Anything unrecognised is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rejection *election.Rejection
	var verr *validation.Error

	switch {
	case errors.As(err, &rejection):
		middleware.ReasonResponse(w, http.StatusBadRequest, string(rejection.Reason), rejection.Reason.Message())
	case errors.As(err, &verr):
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, election.ErrValidation):
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, detail(err, election.ErrValidation))
	case errors.Is(err, election.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, capitalize(detail(err, election.ErrNotFound))+" not found")
	case errors.Is(err, election.ErrPrecondition):
		middleware.ErrorResponse(w, http.StatusConflict, capitalize(detail(err, election.ErrPrecondition)))
	case errors.Is(err, election.ErrConflict):
		middleware.ErrorResponse(w, http.StatusConflict, capitalize(detail(err, election.ErrConflict)))
	case errors.Is(err, verification.ErrInvalidUpload):
		middleware.ReasonResponse(w, http.StatusBadRequest, reasonInvalidUpload, capitalize(detail(err, verification.ErrInvalidUpload)))
	case errors.Is(err, verification.ErrDocumentRejected):
		middleware.ReasonResponse(w, http.StatusBadRequest, reasonDocumentRejected, capitalize(verification.ErrDocumentRejected.Error()))
	case errors.Is(err, verification.ErrNoFace):
		middleware.ReasonResponse(w, http.StatusBadRequest, reasonNoFace, capitalize(verification.ErrNoFace.Error()))
	case errors.Is(err, verification.ErrDuplicateFace):
		middleware.ReasonResponse(w, http.StatusBadRequest, reasonDuplicateFace, capitalize(verification.ErrDuplicateFace.Error()))
	case errors.Is(err, verification.ErrUpstream):
		middleware.ErrorResponse(w, http.StatusBadGateway, "Verification service is unavailable, please try again later")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}

// detail strips the kind's text from a wrapped error, whichever side of the
// message it was wrapped on.
func detail(err, kind error) string {
	msg := err.Error()
	k := kind.Error()
	msg = strings.TrimSuffix(msg, ": "+k)
	return strings.TrimPrefix(msg, k+": ")
}

func capitalize(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
