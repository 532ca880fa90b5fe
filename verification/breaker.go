// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/danielhkuo/campus-vote/logging"
	"github.com/danielhkuo/campus-vote/metrics"
)

// Breaker trips after tripMinRequests calls in one interval when at least
// tripFailureRatio of them failed upstream.
const (
	tripMinRequests  = 5
	tripFailureRatio = 0.6
)

type breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
}

func newBreaker(name string, openTimeout time.Duration) *breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < tripMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= tripFailureRatio {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).Msg("opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// Only collaborator failures count; a rejected document is a normal answer.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUpstream)
		},
	})
	return &breaker{name: name, cb: cb}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func run[T any](b *breaker, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return zero, fmt.Errorf("%w: %s: %w", ErrUpstream, b.name, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()

	typed, ok := out.(T)
	if !ok && out != nil {
		return zero, fmt.Errorf("%s: unexpected result type %T", b.name, out)
	}
	return typed, nil
}

type guardedStore struct {
	next ObjectStore
	b    *breaker
}

// GuardStore wraps an ObjectStore with a circuit breaker.
func GuardStore(next ObjectStore, openTimeout time.Duration) ObjectStore {
	return &guardedStore{next: next, b: newBreaker("object-store", openTimeout)}
}

func (g *guardedStore) Put(ctx context.Context, folder string, u Upload) (string, error) {
	return run(g.b, func() (string, error) { return g.next.Put(ctx, folder, u) })
}

type guardedReader struct {
	next DocumentReader
	b    *breaker
}

// GuardReader wraps a DocumentReader with a circuit breaker.
func GuardReader(next DocumentReader, openTimeout time.Duration) DocumentReader {
	return &guardedReader{next: next, b: newBreaker("document-reader", openTimeout)}
}

func (g *guardedReader) ExtractText(ctx context.Context, documentURL string) (string, error) {
	return run(g.b, func() (string, error) { return g.next.ExtractText(ctx, documentURL) })
}

type guardedMatcher struct {
	next FaceMatcher
	b    *breaker
}

// GuardMatcher wraps a FaceMatcher with a circuit breaker shared by all of its calls.
func GuardMatcher(next FaceMatcher, openTimeout time.Duration) FaceMatcher {
	return &guardedMatcher{next: next, b: newBreaker("face-matcher", openTimeout)}
}

func (g *guardedMatcher) Detect(ctx context.Context, imageURL string) (string, error) {
	return run(g.b, func() (string, error) { return g.next.Detect(ctx, imageURL) })
}

type searchResult struct {
	m  Match
	ok bool
}

func (g *guardedMatcher) Search(ctx context.Context, imageURL, namespace string) (Match, bool, error) {
	r, err := run(g.b, func() (searchResult, error) {
		m, ok, err := g.next.Search(ctx, imageURL, namespace)
		return searchResult{m: m, ok: ok}, err
	})
	return r.m, r.ok, err
}

func (g *guardedMatcher) Register(ctx context.Context, faceID, uid string) error {
	_, err := run(g.b, func() (struct{}, error) { return struct{}{}, g.next.Register(ctx, faceID, uid) })
	return err
}
