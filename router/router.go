// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/campus-vote/auth"
	"github.com/danielhkuo/campus-vote/cliparse"
	"github.com/danielhkuo/campus-vote/election"
	"github.com/danielhkuo/campus-vote/handlers"
	"github.com/danielhkuo/campus-vote/middleware"
	"github.com/danielhkuo/campus-vote/verification"
)

// Verifiers are the external collaborators of the verification flow.
type Verifiers struct {
	Store   verification.ObjectStore
	Reader  verification.DocumentReader
	Matcher verification.FaceMatcher
}

func NewRouter(db *sql.DB, cfg cliparse.Config, v Verifiers) (http.Handler, error) {
	enforcer, err := auth.NewEnforcer()
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialize services and handlers
	svc := election.NewService(db, election.SystemClock)
	gate := election.NewGate(db, election.NewMatricPolicy(cfg.MatricAllowList), election.SystemClock)
	verifier := verification.NewService(gate, v.Store, v.Reader, v.Matcher, verification.Config{
		MaxDocumentBytes:   cfg.MaxDocumentBytes,
		FaceNamespace:      cfg.FaceNamespace,
		DuplicateThreshold: cfg.FaceDupThreshold,
	})

	authHandler := handlers.NewAuthHandler(gate, tokens, cfg)
	studentHandler := handlers.NewStudentHandler(gate, verifier)
	votingHandler := handlers.NewVotingHandler(svc, gate, cfg)
	adminHandler := handlers.NewAdminHandler(svc, gate, v.Store)

	limit := rateLimit(cfg.RateLimit)

	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.WithLogging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public
	r.With(limit).Post("/auth/signin", authHandler.SignIn)
	r.Get("/voting/voting-status", votingHandler.VotingStatus)

	// Authenticated; the enforcer decides per role which of these a caller may reach
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens))
		r.Use(middleware.RequireRole(enforcer))

		r.Get("/auth/me", authHandler.Me)

		r.Route("/student", func(r chi.Router) {
			r.Post("/update-details", studentHandler.UpdateDetails)
			r.With(limit).Post("/upload-document", studentHandler.UploadDocument)
			r.With(limit).Post("/verify-face", studentHandler.VerifyFace)
			r.Get("/verification-status", studentHandler.VerificationStatus)
		})

		r.Route("/voting", func(r chi.Router) {
			r.Get("/positions", votingHandler.Positions)
			r.With(limit).Post("/cast-vote", votingHandler.CastVote)
			r.Get("/my-votes", votingHandler.MyVotes)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/positions", adminHandler.ListPositions)
			r.Post("/positions", adminHandler.CreatePosition)
			r.Delete("/positions/{id}", adminHandler.DeletePosition)

			r.Get("/candidates", adminHandler.ListCandidates)
			r.Post("/candidates", adminHandler.CreateCandidate)
			r.Patch("/candidates/{id}", adminHandler.UpdateCandidate)
			r.Delete("/candidates/{id}", adminHandler.DeleteCandidate)

			r.Get("/voting-sessions", adminHandler.ListSessions)
			r.Post("/voting-sessions", adminHandler.CreateSession)
			r.Post("/voting-sessions/{id}/start", adminHandler.StartSession)
			r.Post("/voting-sessions/{id}/end", adminHandler.EndSession)

			r.Get("/results", adminHandler.Results)
			r.Get("/results/detailed", adminHandler.DetailedResults)
			r.Get("/users", adminHandler.Users)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("campus-vote API v1"))
	})

	return r, nil
}

// rateLimit limits requests per client IP per minute; zero disables it.
// The key is RemoteAddr, which carries a forwarded address only when RealIP
// ran for a trusted proxy.
func rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			middleware.ErrorResponse(w, http.StatusTooManyRequests, "Too many requests, please slow down")
		}),
	)
}
