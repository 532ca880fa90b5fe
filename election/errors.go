// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package election

import "errors"

// Error kinds. Callers wrap these with context and match them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrPrecondition = errors.New("precondition not met")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Reason identifies why a ballot was rejected.
type Reason string

const (
	ReasonNotActivated     Reason = "not_activated"
	ReasonVotingClosed     Reason = "voting_closed"
	ReasonAlreadyVoted     Reason = "already_voted"
	ReasonInvalidCandidate Reason = "invalid_candidate"
)

var reasonMessages = map[Reason]string{
	ReasonNotActivated:     "Your account must be verified and activated before you can vote",
	ReasonVotingClosed:     "Voting is not currently active",
	ReasonAlreadyVoted:     "You have already voted for this position",
	ReasonInvalidCandidate: "Invalid candidate selection",
}

// Message is the stable, user-facing text for r.
func (r Reason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

// Rejection is an expected business-rule refusal of a ballot.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return r.Reason.Message()
}

// Is matches any Rejection carrying the same reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrNotActivated     = &Rejection{Reason: ReasonNotActivated}
	ErrVotingClosed     = &Rejection{Reason: ReasonVotingClosed}
	ErrAlreadyVoted     = &Rejection{Reason: ReasonAlreadyVoted}
	ErrInvalidCandidate = &Rejection{Reason: ReasonInvalidCandidate}
)

func reject(reason Reason) error {
	return &Rejection{Reason: reason}
}
