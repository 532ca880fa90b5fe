// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/metrics"
	"github.com/danielhkuo/campus-vote/models"
)

// Config holds the verification limits.
type Config struct {
	MaxDocumentBytes int64
	FaceNamespace    string
	// DuplicateThreshold is the match confidence, in percent, above which a
	// face counts as already enrolled.
	DuplicateThreshold float64
}

// Service runs the document and face checks and records their outcome on
// the activation gate. Collaborator failures leave the account unchanged.
type Service struct {
	gate  *election.Gate
	store ObjectStore
	docs  DocumentReader
	faces FaceMatcher
	cfg   Config
}

func NewService(gate *election.Gate, store ObjectStore, docs DocumentReader, faces FaceMatcher, cfg Config) *Service {
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = 10 << 20
	}
	if cfg.DuplicateThreshold <= 0 {
		cfg.DuplicateThreshold = 85
	}
	return &Service{gate: gate, store: store, docs: docs, faces: faces, cfg: cfg}
}

// MaxDocumentBytes is the upload limit for documents.
func (s *Service) MaxDocumentBytes() int64 {
	return s.cfg.MaxDocumentBytes
}

// SubmitDocument stores a PDF, checks that it names the account's matric
// number and full name, and marks the document verified.
func (s *Service) SubmitDocument(ctx context.Context, accountID string, u Upload) (models.VerificationStatus, error) {
	acct, err := s.gate.Account(ctx, accountID)
	if err != nil {
		return models.VerificationStatus{}, err
	}
	if acct.DocumentVerified {
		return s.gate.Status(ctx, accountID)
	}
	if acct.MatricNumber == nil {
		return models.VerificationStatus{}, fmt.Errorf("matriculation number must be set before uploading a document: %w", election.ErrPrecondition)
	}

	if err := s.checkDocument(u); err != nil {
		s.outcome("document", "invalid")
		return models.VerificationStatus{}, err
	}

	documentURL, err := s.store.Put(ctx, "documents", u)
	if err != nil {
		return models.VerificationStatus{}, s.upstream(ctx, "document", err)
	}
	text, err := s.docs.ExtractText(ctx, documentURL)
	if err != nil {
		return models.VerificationStatus{}, s.upstream(ctx, "document", err)
	}

	if !DocumentMatches(text, *acct.MatricNumber, acct.FullName) {
		s.outcome("document", "rejected")
		logging.Ctx(ctx).Info().Str("account_id", accountID).Msg("document content did not match account details")
		return models.VerificationStatus{}, ErrDocumentRejected
	}

	if err := s.gate.RecordDocumentVerified(ctx, accountID, documentURL); err != nil {
		return models.VerificationStatus{}, err
	}
	s.outcome("document", "verified")
	return s.gate.Status(ctx, accountID)
}

func (s *Service) checkDocument(u Upload) error {
	if len(u.Data) == 0 {
		return fmt.Errorf("%w: document is empty", ErrInvalidUpload)
	}
	if !strings.EqualFold(mediaType(u.ContentType), "application/pdf") {
		return fmt.Errorf("%w: document must be a PDF", ErrInvalidUpload)
	}
	if int64(len(u.Data)) > s.cfg.MaxDocumentBytes {
		return fmt.Errorf("%w: document exceeds %s", ErrInvalidUpload, humanize.IBytes(uint64(s.cfg.MaxDocumentBytes)))
	}
	return nil
}

// DocumentMatches reports whether text contains the matric number and every
// part of fullName longer than two characters, ignoring case.
func DocumentMatches(text, matric, fullName string) bool {
	text = strings.ToLower(text)
	if matric == "" || !strings.Contains(text, strings.ToLower(matric)) {
		return false
	}
	for _, part := range strings.Fields(fullName) {
		if len([]rune(part)) > 2 && !strings.Contains(text, strings.ToLower(part)) {
			return false
		}
	}
	return true
}

// SubmitFace stores a face image, rejects images without a face or whose
// face is already enrolled, enrols it and activates the account.
func (s *Service) SubmitFace(ctx context.Context, accountID string, u Upload) (models.VerificationStatus, error) {
	acct, err := s.gate.Account(ctx, accountID)
	if err != nil {
		return models.VerificationStatus{}, err
	}
	if acct.Activated {
		return s.gate.Status(ctx, accountID)
	}
	if !acct.DocumentVerified || acct.MatricNumber == nil {
		return models.VerificationStatus{}, fmt.Errorf("document must be verified first: %w", election.ErrPrecondition)
	}

	if len(u.Data) == 0 {
		s.outcome("face", "invalid")
		return models.VerificationStatus{}, fmt.Errorf("%w: image is empty", ErrInvalidUpload)
	}
	if !strings.HasPrefix(strings.ToLower(mediaType(u.ContentType)), "image/") {
		s.outcome("face", "invalid")
		return models.VerificationStatus{}, fmt.Errorf("%w: face capture must be an image", ErrInvalidUpload)
	}

	imageURL, err := s.store.Put(ctx, "faces", u)
	if err != nil {
		return models.VerificationStatus{}, s.upstream(ctx, "face", err)
	}

	faceID, err := s.faces.Detect(ctx, imageURL)
	if err != nil {
		return models.VerificationStatus{}, s.upstream(ctx, "face", err)
	}
	if faceID == "" {
		s.outcome("face", "no_face")
		return models.VerificationStatus{}, ErrNoFace
	}

	uid := s.faceUID(*acct.MatricNumber)
	match, found, err := s.faces.Search(ctx, imageURL, s.cfg.FaceNamespace)
	if err != nil {
		return models.VerificationStatus{}, s.upstream(ctx, "face", err)
	}
	if found && match.UID != uid && match.Confidence > s.cfg.DuplicateThreshold {
		s.outcome("face", "duplicate")
		logging.Ctx(ctx).Warn().
			Str("account_id", accountID).
			Float64("confidence", match.Confidence).
			Msg("face matches another enrolled student")
		return models.VerificationStatus{}, ErrDuplicateFace
	}

	if err := s.faces.Register(ctx, faceID, uid); err != nil {
		return models.VerificationStatus{}, s.upstream(ctx, "face", err)
	}

	if err := s.gate.RecordFaceVerified(ctx, accountID, uid); err != nil {
		return models.VerificationStatus{}, err
	}
	s.outcome("face", "verified")
	return s.gate.Status(ctx, accountID)
}

func (s *Service) faceUID(matric string) string {
	return matric + "@" + s.cfg.FaceNamespace
}

func (s *Service) upstream(ctx context.Context, step string, err error) error {
	s.outcome(step, "upstream_error")
	logging.Ctx(ctx).Error().Err(err).Str("step", step).Msg("verification collaborator failed")
	if !errors.Is(err, ErrUpstream) {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return err
}

func (s *Service) outcome(step, outcome string) {
	metrics.VerificationOutcomes.WithLabelValues(step, outcome).Inc()
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(mt)
}
