// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/testutil"
)

type fakeStore struct {
	err  error
	puts []string
}

func (f *fakeStore) Put(_ context.Context, folder string, u Upload) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, folder)
	return "https://files.example/" + folder + "/" + u.Filename, nil
}

type fakeReader struct {
	text string
	err  error
}

func (f *fakeReader) ExtractText(context.Context, string) (string, error) {
	return f.text, f.err
}

type fakeMatcher struct {
	faceID    string
	detectErr error
	match     Match
	found     bool
	searchErr error
	regErr    error
	enrolled  []string
}

func (f *fakeMatcher) Detect(context.Context, string) (string, error) {
	return f.faceID, f.detectErr
}

func (f *fakeMatcher) Search(context.Context, string, string) (Match, bool, error) {
	return f.match, f.found, f.searchErr
}

func (f *fakeMatcher) Register(_ context.Context, _, uid string) error {
	if f.regErr != nil {
		return f.regErr
	}
	f.enrolled = append(f.enrolled, uid)
	return nil
}

type harness struct {
	conn    *sql.DB
	svc     *Service
	store   *fakeStore
	reader  *fakeReader
	matcher *fakeMatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	h := &harness{
		conn:    conn,
		store:   &fakeStore{},
		reader:  &fakeReader{},
		matcher: &fakeMatcher{faceID: "tid-1"},
	}
	gate := election.NewGate(conn, election.NewMatricPolicy(nil), nil)
	h.svc = NewService(gate, h.store, h.reader, h.matcher, Config{
		MaxDocumentBytes: 1024,
		FaceNamespace:    "test",
	})
	return h
}

func pdf(size int) Upload {
	return Upload{Filename: "form.pdf", ContentType: "application/pdf", Data: make([]byte, size)}
}

func jpeg() Upload {
	return Upload{Filename: "face.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
}

func upstreamErr(msg string) error {
	return fmt.Errorf("%w: %s", ErrUpstream, msg)
}

func TestDocumentMatches(t *testing.T) {
	text := "LAGOS STATE UNIVERSITY\nCourse Registration\nName: OBI, Ada Chiamaka\nMatric No: 190591001"

	tests := []struct {
		name     string
		matric   string
		fullName string
		want     bool
	}{
		{"all parts present", "190591001", "Ada Chiamaka Obi", true},
		{"case insensitive", "190591001", "ADA chiamaka OBI", true},
		{"short parts ignored", "190591001", "Ada Obi Jo", true},
		{"missing matric", "190591002", "Ada Obi", false},
		{"missing name part", "190591001", "Ada Okafor", false},
		{"empty matric", "", "Ada Obi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocumentMatches(text, tt.matric, tt.fullName); got != tt.want {
				t.Errorf("DocumentMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmitDocument(t *testing.T) {
	h := newHarness(t)
	acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDetails)
	h.reader.text = "Student: Ada Obi, matric " + *acct.MatricNumber

	status, err := h.svc.SubmitDocument(context.Background(), acct.ID, pdf(100))
	if err != nil {
		t.Fatalf("SubmitDocument() error = %v", err)
	}
	if !status.DocumentVerified || status.IsActivated {
		t.Errorf("Unexpected status %+v", status)
	}

	var url string
	if err := h.conn.QueryRow(`SELECT document_url FROM account WHERE id = $1`, acct.ID).Scan(&url); err != nil {
		t.Fatal(err)
	}
	if url != "https://files.example/documents/form.pdf" {
		t.Errorf("Unexpected document url %q", url)
	}

	// A second upload is a no-op.
	if _, err := h.svc.SubmitDocument(context.Background(), acct.ID, pdf(100)); err != nil {
		t.Errorf("Repeated SubmitDocument() error = %v", err)
	}
	if len(h.store.puts) != 1 {
		t.Errorf("Expected a single stored document, got %d", len(h.store.puts))
	}
}

func TestSubmitDocument_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		upload Upload
		text   string
		want   error
	}{
		{"no matric yet", testutil.StateNew, pdf(10), "", election.ErrPrecondition},
		{"not a pdf", testutil.StateDetails, Upload{Filename: "a.png", ContentType: "image/png", Data: []byte{1}}, "", ErrInvalidUpload},
		{"too large", testutil.StateDetails, pdf(2048), "", ErrInvalidUpload},
		{"empty", testutil.StateDetails, pdf(0), "", ErrInvalidUpload},
		{"content mismatch", testutil.StateDetails, pdf(10), "someone else entirely", ErrDocumentRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			acct := testutil.CreateTestAccount(t, h.conn, tt.state)
			h.reader.text = tt.text

			_, err := h.svc.SubmitDocument(context.Background(), acct.ID, tt.upload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("SubmitDocument() error = %v, want %v", err, tt.want)
			}
			if doc, _, _ := testutil.AccountFlags(t, h.conn, acct.ID); doc {
				t.Error("Rejected document must not be marked verified")
			}
		})
	}
}

func TestSubmitDocument_SizeMessage(t *testing.T) {
	h := newHarness(t)
	acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDetails)

	_, err := h.svc.SubmitDocument(context.Background(), acct.ID, pdf(4096))
	if err == nil || !strings.Contains(err.Error(), "1.0 KiB") {
		t.Errorf("Expected human readable limit in %v", err)
	}
}

func TestSubmitDocument_UpstreamFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"store down", func(h *harness) { h.store.err = upstreamErr("503") }},
		{"reader down", func(h *harness) { h.reader.err = upstreamErr("timeout") }},
		{"reader unwrapped error", func(h *harness) { h.reader.err = errors.New("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDetails)
			tt.setup(h)

			_, err := h.svc.SubmitDocument(context.Background(), acct.ID, pdf(10))
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("Expected ErrUpstream, got %v", err)
			}
			if doc, face, act := testutil.AccountFlags(t, h.conn, acct.ID); doc || face || act {
				t.Error("Flags must be unchanged after an upstream failure")
			}
		})
	}
}

func TestSubmitFace(t *testing.T) {
	h := newHarness(t)
	acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDocument)

	status, err := h.svc.SubmitFace(context.Background(), acct.ID, jpeg())
	if err != nil {
		t.Fatalf("SubmitFace() error = %v", err)
	}
	if !status.FaceVerified || !status.IsActivated {
		t.Errorf("Expected activated account, got %+v", status)
	}

	want := *acct.MatricNumber + "@test"
	if len(h.matcher.enrolled) != 1 || h.matcher.enrolled[0] != want {
		t.Errorf("Expected enrolment as %s, got %v", want, h.matcher.enrolled)
	}

	// Activated accounts are not sent through the matcher again.
	if _, err := h.svc.SubmitFace(context.Background(), acct.ID, jpeg()); err != nil {
		t.Errorf("Repeated SubmitFace() error = %v", err)
	}
	if len(h.matcher.enrolled) != 1 {
		t.Errorf("Expected one enrolment, got %d", len(h.matcher.enrolled))
	}
}

func TestSubmitFace_OwnFaceIsNotDuplicate(t *testing.T) {
	h := newHarness(t)
	acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDocument)
	h.matcher.found = true
	h.matcher.match = Match{UID: *acct.MatricNumber + "@test", Confidence: 99}

	if _, err := h.svc.SubmitFace(context.Background(), acct.ID, jpeg()); err != nil {
		t.Errorf("Re-enrolling the same student should succeed, got %v", err)
	}
}

func TestSubmitFace_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		state  string
		upload Upload
		setup  func(m *fakeMatcher)
		want   error
	}{
		{"document not verified", testutil.StateDetails, jpeg(), nil, election.ErrPrecondition},
		{"not an image", testutil.StateDocument, pdf(10), nil, ErrInvalidUpload},
		{"no face", testutil.StateDocument, jpeg(), func(m *fakeMatcher) { m.faceID = "" }, ErrNoFace},
		{
			"duplicate above threshold", testutil.StateDocument, jpeg(),
			func(m *fakeMatcher) { m.found, m.match = true, Match{UID: "other@test", Confidence: 85.5} },
			ErrDuplicateFace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			acct := testutil.CreateTestAccount(t, h.conn, tt.state)
			if tt.setup != nil {
				tt.setup(h.matcher)
			}

			_, err := h.svc.SubmitFace(context.Background(), acct.ID, tt.upload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("SubmitFace() error = %v, want %v", err, tt.want)
			}
			if _, face, act := testutil.AccountFlags(t, h.conn, acct.ID); face || act {
				t.Error("Rejected face must not activate the account")
			}
		})
	}
}

func TestSubmitFace_ThresholdIsExclusive(t *testing.T) {
	h := newHarness(t)
	acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDocument)
	h.matcher.found = true
	h.matcher.match = Match{UID: "other@test", Confidence: 85}

	if _, err := h.svc.SubmitFace(context.Background(), acct.ID, jpeg()); err != nil {
		t.Errorf("Confidence equal to the threshold is not a duplicate, got %v", err)
	}
}

// The face service fails mid-flow: nothing changes and the caller sees ErrUpstream.
func TestSubmitFace_UpstreamFailureLeavesFlags(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
	}{
		{"store", func(h *harness) { h.store.err = upstreamErr("503") }},
		{"detect", func(h *harness) { h.matcher.detectErr = upstreamErr("timeout") }},
		{"search", func(h *harness) { h.matcher.searchErr = upstreamErr("reset") }},
		{"register", func(h *harness) { h.matcher.regErr = upstreamErr("500") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDocument)
			tt.setup(h)

			_, err := h.svc.SubmitFace(context.Background(), acct.ID, jpeg())
			if !errors.Is(err, ErrUpstream) {
				t.Fatalf("Expected ErrUpstream, got %v", err)
			}

			doc, face, act := testutil.AccountFlags(t, h.conn, acct.ID)
			if !doc || face || act {
				t.Errorf("Flags changed: document=%v face=%v activated=%v", doc, face, act)
			}
		})
	}
}

func TestSubmitFace_BreakerOpenIsUpstream(t *testing.T) {
	h := newHarness(t)
	failing := &fakeMatcher{detectErr: upstreamErr("down")}
	gate := election.NewGate(h.conn, election.NewMatricPolicy(nil), nil)
	svc := NewService(gate, h.store, h.reader, GuardMatcher(failing, time.Minute), Config{FaceNamespace: "test"})
	acct := testutil.CreateTestAccount(t, h.conn, testutil.StateDocument)

	var err error
	for i := 0; i < tripMinRequests+1; i++ {
		_, err = svc.SubmitFace(context.Background(), acct.ID, jpeg())
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Expected ErrUpstream from open breaker, got %v", err)
	}

	status, err := gate.Status(context.Background(), acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status.IsActivated {
		t.Error("Account must stay inactive")
	}
}
