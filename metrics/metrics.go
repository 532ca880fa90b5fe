// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusvote_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusvote_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campusvote_api_active_requests",
			Help: "Requests currently being served",
		},
	)
)

// Voting
var (
	VotesCast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campusvote_votes_cast_total",
			Help: "Votes committed to the ledger",
		},
	)

	BallotRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusvote_ballot_rejections_total",
			Help: "Ballots refused, by reason",
		},
		[]string{"reason"},
	)

	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusvote_session_transitions_total",
			Help: "Voting session start/end operations",
		},
		[]string{"action"},
	)
)

// Verification
var (
	VerificationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusvote_verification_outcomes_total",
			Help: "Document and face verification attempts by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campusvote_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusvote_circuit_breaker_requests_total",
			Help: "Requests through circuit breakers by result",
		},
		[]string{"name", "result"},
	)
)
