// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/metrics"
	"github.com/danielhkuo/campus-vote/models"
	"github.com/danielhkuo/campus-vote/testutil"
)

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"OK", http.StatusOK, "ok"},
		{"Created", http.StatusCreated, `{"id":"123"}`},
		{"BadRequest", http.StatusBadRequest, `{"error":"bad request"}`},
		{"NotFound", http.StatusNotFound, "not found"},
		{"InternalError", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WithLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			}))

			req := httptest.NewRequest("POST", "/voting/cast-vote", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if w.Body.String() != tc.body {
				t.Errorf("Expected body '%s', got '%s'", tc.body, w.Body.String())
			}
		})
	}
}

func TestWithLogging_LogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{Level: "info", Format: "json", Output: io.Discard}) })

	handler := RequestID(WithLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, `"status":418`) {
		t.Errorf("Expected status in access log, got %s", out)
	}
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Errorf("Expected request_id in access log, got %s", out)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if seen == "" || w.Header().Get(RequestIDHeader) != seen {
			t.Errorf("Expected generated id echoed, ctx=%q header=%q", seen, w.Header().Get(RequestIDHeader))
		}
	})

	t.Run("client supplied", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if seen != "abc" || w.Header().Get(RequestIDHeader) != "abc" {
			t.Errorf("Expected client id to be reused, got %q", seen)
		}
	})

	t.Run("oversized replaced", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) > maxRequestIDLen {
			t.Errorf("Expected oversized id to be replaced, got %d chars", len(seen))
		}
	})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/admin/voting-sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues("GET", "/admin/voting-sessions/{id}", "204")
	before := promtestutil.ToFloat64(counter)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/admin/voting-sessions/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/admin/voting-sessions/def", nil))

	if got := promtestutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("Expected 2 requests under the route pattern, got %v", got)
	}
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{
			name:       "simple struct",
			statusCode: http.StatusOK,
			data:       models.MessageResponse{Message: "Vote cast successfully"},
			expected:   `{"message":"Vote cast successfully"}`,
		},
		{
			name:       "status response",
			statusCode: http.StatusOK,
			data:       models.VotingStatusResponse{IsActive: true},
			expected:   `{"isActive":true}`,
		},
		{
			name:       "error response",
			statusCode: http.StatusBadRequest,
			data:       models.ErrorResponse{Error: "Bad Request", Message: "missing field"},
			expected:   `{"error":"Bad Request","message":"missing field"}`,
		},
		{
			name:       "array data",
			statusCode: http.StatusOK,
			data:       []string{"a", "b", "c"},
			expected:   `["a","b","c"]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			JSONResponse(w, tc.statusCode, tc.data)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}
			if body := strings.TrimSpace(w.Body.String()); body != tc.expected {
				t.Errorf("Expected body '%s', got '%s'", tc.expected, body)
			}
		})
	}
}

func TestErrorResponses(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorResponse(w, http.StatusNotFound, "Voting session not found")

	var resp models.ErrorResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.Error != "Not Found" || resp.Message != "Voting session not found" || resp.Reason != "" {
		t.Errorf("Unexpected error response %+v", resp)
	}

	w = httptest.NewRecorder()
	ReasonResponse(w, http.StatusBadRequest, "already_voted", "You have already voted for this position")
	testutil.AssertStatus(t, w, http.StatusBadRequest)
	resp = models.ErrorResponse{}
	testutil.AssertJSON(t, w, &resp)
	if resp.Reason != "already_voted" {
		t.Errorf("Expected reason, got %+v", resp)
	}
}

func TestParseJSONBody(t *testing.T) {
	parse := func(body string) (models.CastVoteRequest, error) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))
		var parsed models.CastVoteRequest
		err := ParseJSONBody(httptest.NewRecorder(), req, &parsed)
		return parsed, err
	}

	t.Run("valid JSON", func(t *testing.T) {
		parsed, err := parse(`{"positionId":"p1","candidateId":"c1"}`)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.PositionID != "p1" || parsed.CandidateID != "c1" {
			t.Errorf("Unexpected parse result %+v", parsed)
		}
	})

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{invalid json}`},
		{"empty body", ``},
		{"unknown field", `{"positionId":"p1","candidateId":"c1","accountId":"someone"}`},
		{"trailing object", `{"positionId":"p1"}{"positionId":"p2"}`},
		{"too large", `{"positionId":"` + strings.Repeat("x", maxJSONBody) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(tt.body); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})

	t.Run("preflight", func(t *testing.T) {
		handler := CORS([]string{"https://vote.example.edu"})(next)
		req := httptest.NewRequest("OPTIONS", "/voting/cast-vote", nil)
		req.Header.Set("Origin", "https://vote.example.edu")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Body.String() == "handled" {
			t.Error("Preflight must not reach the handler")
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "https://vote.example.edu" {
			t.Errorf("Unexpected allow origin %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("Expected credentials to be allowed for explicit origins")
		}
		if !strings.Contains(strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "authorization") {
			t.Errorf("Expected Authorization to be allowed, got %q", w.Header().Get("Access-Control-Allow-Headers"))
		}
	})

	t.Run("wildcard", func(t *testing.T) {
		handler := CORS([]string{"*"})(next)
		req := httptest.NewRequest("GET", "/voting/voting-status", nil)
		req.Header.Set("Origin", "https://anywhere.example")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Body.String() != "handled" {
			t.Error("Expected next handler to be called")
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("Expected wildcard origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		handler := CORS([]string{"https://vote.example.edu"})(next)
		req := httptest.NewRequest("GET", "/voting/voting-status", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("Disallowed origin must not be echoed")
		}
	})
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"x-forwarded-for ignored", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:1234", "10.0.0.2"},
		{"x-real-ip ignored", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "10.0.0.2"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req); got != tc.expected {
				t.Errorf("GetClientIP() = %q, want %q", got, tc.expected)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	tm := auth.NewTokenManager(testutil.TestJWTSecret, time.Hour)
	account := models.Account{ID: "acct-1", Email: "ada@example.edu", Activated: true}

	var got auth.AuthenticatedAccount
	handler := RequireAuth(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.AccountFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token := testutil.TestToken(t, account)
	expired := auth.NewTokenManager(testutil.TestJWTSecret, -time.Minute)
	stale, _, err := expired.Issue(account)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"expired", "Bearer " + stale, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = auth.AuthenticatedAccount{}
			req := httptest.NewRequest("GET", "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			testutil.AssertStatus(t, w, tt.want)
			if tt.want == http.StatusOK && (got.ID != "acct-1" || !got.IsActivated) {
				t.Errorf("Unexpected account in context %+v", got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	enforcer, err := auth.NewEnforcer()
	if err != nil {
		t.Fatal(err)
	}
	handler := RequireRole(enforcer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		role   string
		method string
		path   string
		want   int
	}{
		{"student on admin route", models.RoleStudent, "GET", "/admin/results", http.StatusForbidden},
		{"admin on admin route", models.RoleAdmin, "POST", "/admin/voting-sessions/s1/start", http.StatusOK},
		{"admin inherits student", models.RoleAdmin, "POST", "/voting/cast-vote", http.StatusOK},
		{"student on voting route", models.RoleStudent, "POST", "/voting/cast-vote", http.StatusOK},
		{"unknown role", "guest", "GET", "/voting/positions", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req = req.WithContext(auth.WithAccount(req.Context(), auth.AuthenticatedAccount{ID: "a", Role: tt.role}))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			testutil.AssertStatus(t, w, tt.want)
		})
	}

	t.Run("unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/voting/positions", nil))
		testutil.AssertStatus(t, w, http.StatusUnauthorized)

		var resp models.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil || resp.Error != "Unauthorized" {
			t.Errorf("Unexpected body %+v (%v)", resp, err)
		}
	})
}
