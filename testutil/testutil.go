// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/cliparse"
	"github.com/danielhkuo/campus-vote/db"
	"github.com/danielhkuo/campus-vote/models"
)

// TestJWTSecret signs tokens in tests; it satisfies the 32 character minimum.
const TestJWTSecret = "test-jwt-secret-0123456789abcdef"

// SetupTestDB creates a fresh SQLite database with the full schema in a
// temporary directory. It is closed when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.TypeSQLite, filepath.Join(t.TempDir(), "campus-vote.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:             3318,
		DatabaseURL:      "file:test.db",
		DatabaseType:     db.TypeSQLite,
		JWTSecret:        TestJWTSecret,
		TokenTTL:         time.Hour,
		IdentitySecret:   "test-identity-secret",
		IPHashSalt:       "test-ip-salt",
		AdminEmail:       "admin@example.edu",
		CORSOrigins:      []string{"*"},
		RateLimit:        1000,
		MatricAllowList:  []string{"LEGACY001"},
		MaxDocumentSize:  "1MiB",
		MaxDocumentBytes: 1 << 20,
		UpstreamTimeout:  time.Second,
		FaceNamespace:    "test",
		FaceDupThreshold: 85,
	}
}

// Account states for CreateTestAccount
const (
	StateNew       = "new"
	StateDetails   = "details"
	StateDocument  = "document"
	StateActivated = "activated"
	StateAdmin     = "admin"
)

var matricSeq atomic.Int64

// NextMatric returns a unique, well-formed matriculation number.
func NextMatric() string {
	return fmt.Sprintf("19%07d", matricSeq.Add(1))
}

// CreateTestAccount inserts an account in the given verification state and returns it.
func CreateTestAccount(t *testing.T, conn *sql.DB, state string) models.Account {
	t.Helper()

	id := uuid.NewString()
	a := models.Account{
		ID:         id,
		ExternalID: "ext-" + id,
		Email:      id + "@example.edu",
		FullName:   "Ada Obi",
		CreatedAt:  time.Now().UTC(),
	}

	switch state {
	case StateNew:
	case StateDetails:
		m := NextMatric()
		a.MatricNumber = &m
	case StateDocument:
		m := NextMatric()
		a.MatricNumber = &m
		a.DocumentVerified = true
	case StateActivated:
		m := NextMatric()
		a.MatricNumber = &m
		a.DocumentVerified, a.FaceVerified, a.Activated = true, true, true
	case StateAdmin:
		a.IsAdmin = true
	default:
		t.Fatalf("unknown account state %q", state)
	}

	_, err := conn.Exec(`
		INSERT INTO account (id, external_id, email, full_name, matric_number, document_verified,
			face_verified, activated, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, a.ID, a.ExternalID, a.Email, a.FullName, a.MatricNumber, a.DocumentVerified,
		a.FaceVerified, a.Activated, a.IsAdmin, a.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return a
}

// CreateTestPosition inserts an active position and returns its ID
func CreateTestPosition(t *testing.T, conn *sql.DB, title string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO position (id, title, max_votes, active, created_at)
		VALUES ($1, $2, 1, TRUE, $3)
	`, id, title, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test position: %v", err)
	}
	return id
}

// CreateTestCandidate inserts a candidate for a position and returns its ID
func CreateTestCandidate(t *testing.T, conn *sql.DB, positionID, name string, active bool) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO candidate (id, position_id, full_name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, positionID, name, active, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}
	return id
}

// CreateTestSession inserts a voting session and returns its ID
func CreateTestSession(t *testing.T, conn *sql.DB, start, end time.Time, active bool) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO voting_session (id, title, start_time, end_time, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, "Session "+id[:8], start.UTC(), end.UTC(), active, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return id
}

// OpenTestSession creates an active session spanning the current time.
func OpenTestSession(t *testing.T, conn *sql.DB) string {
	t.Helper()
	now := time.Now().UTC()
	return CreateTestSession(t, conn, now.Add(-time.Hour), now.Add(time.Hour), true)
}

// CastTestVote inserts a vote row directly, bypassing validation
func CastTestVote(t *testing.T, conn *sql.DB, accountID, positionID, candidateID string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO vote (id, account_id, position_id, candidate_id, voted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, accountID, positionID, candidateID, time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
	return id
}

// AccountFlags reads the verification flags of an account
func AccountFlags(t *testing.T, conn *sql.DB, accountID string) (documentVerified, faceVerified, activated bool) {
	t.Helper()

	err := conn.QueryRow(`
		SELECT document_verified, face_verified, activated FROM account WHERE id = $1
	`, accountID).Scan(&documentVerified, &faceVerified, &activated)
	if err != nil {
		t.Fatalf("Failed to read account flags: %v", err)
	}
	return documentVerified, faceVerified, activated
}

// CountRows counts rows in table matching where (use "" for all rows)
func CountRows(t *testing.T, conn *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// TestToken issues a bearer token for an account using the test secret
func TestToken(t *testing.T, a models.Account) string {
	t.Helper()

	tm := auth.NewTokenManager(TestJWTSecret, time.Hour)
	token, _, err := tm.Issue(a)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return token
}

// BearerHeader builds the Authorization header map for MakeRequest
func BearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// MakeMultipartRequest creates a request carrying one file part
func MakeMultipartRequest(t *testing.T, method, path, field, filename, contentType string, content []byte, headers map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("Failed to create multipart part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write multipart part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
