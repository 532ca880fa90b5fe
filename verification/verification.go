// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verification

import (
	"context"
	"errors"
)

var (
	// ErrUpstream wraps every failure of an external collaborator, including
	// an open circuit breaker. Account flags are never changed when it is returned.
	ErrUpstream = errors.New("verification service unavailable")

	ErrInvalidUpload    = errors.New("invalid upload")
	ErrDocumentRejected = errors.New("document does not match the account details")
	ErrNoFace           = errors.New("no face detected in image")
	ErrDuplicateFace    = errors.New("face is already registered to another student")
)

// Upload is one file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ObjectStore persists uploaded files and returns a URL that the other
// collaborators can fetch.
type ObjectStore interface {
	Put(ctx context.Context, folder string, u Upload) (string, error)
}

// DocumentReader extracts the text content of a stored PDF.
type DocumentReader interface {
	ExtractText(ctx context.Context, documentURL string) (string, error)
}

// Match is the closest enrolled face for an image.
type Match struct {
	UID        string
	Confidence float64 // percent, 0-100
}

// FaceMatcher detects, searches and enrols faces.
type FaceMatcher interface {
	// Detect returns the temporary id of the face in the image, or "" when
	// the image holds no face.
	Detect(ctx context.Context, imageURL string) (string, error)
	// Search returns the best match in namespace; ok is false when nothing
	// is enrolled that resembles the image.
	Search(ctx context.Context, imageURL, namespace string) (m Match, ok bool, err error)
	// Register enrols the detected face under uid.
	Register(ctx context.Context, faceID, uid string) error
}
