// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/cliparse"
	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/models"
	"github.com/danielhkuo/campus-vote/testutil"
	"github.com/danielhkuo/campus-vote/verification"
)

type stubStore struct {
	err  error
	puts []string
}

func (s *stubStore) Put(_ context.Context, folder string, u verification.Upload) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.puts = append(s.puts, folder)
	return "https://files.example/" + folder + "/" + u.Filename, nil
}

type stubReader struct {
	text string
	err  error
}

func (s *stubReader) ExtractText(context.Context, string) (string, error) {
	return s.text, s.err
}

type stubMatcher struct {
	faceID    string
	detectErr error
	match     verification.Match
	found     bool
	regErr    error
}

func (s *stubMatcher) Detect(context.Context, string) (string, error) {
	return s.faceID, s.detectErr
}

func (s *stubMatcher) Search(context.Context, string, string) (verification.Match, bool, error) {
	return s.match, s.found, nil
}

func (s *stubMatcher) Register(context.Context, string, string) error {
	return s.regErr
}

// fixture wires every handler against one SQLite database and stub
// verification collaborators.
type fixture struct {
	conn    *sql.DB
	cfg     cliparse.Config
	svc     *election.Service
	gate    *election.Gate
	store   *stubStore
	reader  *stubReader
	matcher *stubMatcher

	voting  *VotingHandler
	student *StudentHandler
	admin   *AdminHandler
	auth    *AuthHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		conn:    testutil.SetupTestDB(t),
		cfg:     testutil.GetTestConfig(),
		store:   &stubStore{},
		reader:  &stubReader{},
		matcher: &stubMatcher{faceID: "face-1"},
	}
	f.svc = election.NewService(f.conn, election.SystemClock)
	f.gate = election.NewGate(f.conn, election.NewMatricPolicy(f.cfg.MatricAllowList), election.SystemClock)

	verifier := verification.NewService(f.gate, f.store, f.reader, f.matcher, verification.Config{
		MaxDocumentBytes:   1024,
		FaceNamespace:      f.cfg.FaceNamespace,
		DuplicateThreshold: f.cfg.FaceDupThreshold,
	})

	f.voting = NewVotingHandler(f.svc, f.gate, f.cfg)
	f.student = NewStudentHandler(f.gate, verifier)
	f.admin = NewAdminHandler(f.svc, f.gate, f.store)
	f.auth = NewAuthHandler(f.gate, auth.NewTokenManager(f.cfg.JWTSecret, f.cfg.TokenTTL), f.cfg)
	return f
}

// documentText returns extracted text that matches the account.
func (f *fixture) documentText(a models.Account) string {
	return fmt.Sprintf("UNIVERSITY COURSE FORM\nMatric No: %s\nName: %s", *a.MatricNumber, a.FullName)
}

// as attaches the account to the request the way RequireAuth does.
func as(req *http.Request, a models.Account) *http.Request {
	return req.WithContext(auth.WithAccount(req.Context(), auth.AuthenticatedAccount{
		ID:          a.ID,
		Email:       a.Email,
		Role:        a.Role(),
		IsActivated: a.Activated,
	}))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	return resp
}

func pdf(size int) []byte {
	b := make([]byte, size)
	copy(b, "%PDF-1.7\n")
	return b
}
