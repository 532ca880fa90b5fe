// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/campus-vote/models"
)

func TestStructValid(t *testing.T) {
	req := models.CastVoteRequest{PositionID: "p1", CandidateID: "c1"}
	if err := Struct(&req); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}
}

func TestStructMessagesUseJSONNames(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{
			name: "missing candidate",
			in:   &models.CastVoteRequest{PositionID: "p1"},
			want: "candidateId is required",
		},
		{
			name: "bad email",
			in:   &models.SignInRequest{ExternalID: "x", Email: "nope", FullName: "Ada"},
			want: "email must be a valid email address",
		},
		{
			name: "short name",
			in:   &models.UpdateDetailsRequest{MatricNumber: "190591001", FullName: "A"},
			want: "fullName must be at least 2 characters",
		},
		{
			name: "end before start",
			in: &models.CreateSessionRequest{
				Title:     "General",
				StartTime: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
				EndTime:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
			want: "endTime must be after startTime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestNotBlank(t *testing.T) {
	type req struct {
		Name string `json:"name" validate:"notblank"`
	}
	if err := Struct(&req{Name: "   "}); err == nil {
		t.Error("Expected whitespace-only value to fail")
	}
	if err := Struct(&req{Name: " x "}); err != nil {
		t.Errorf("Expected value to pass, got %v", err)
	}
}
