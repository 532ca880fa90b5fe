package models

import "time"

// Roles carried in tokens and used by the policy enforcer
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Domain types

type Account struct {
	ID               string    `json:"id"`
	ExternalID       string    `json:"-"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	MatricNumber     *string   `json:"matricNumber,omitempty"`
	ProfileImageURL  *string   `json:"profileImageUrl,omitempty"`
	DocumentURL      *string   `json:"documentUrl,omitempty"`
	DocumentVerified bool      `json:"documentVerified"`
	FaceVerified     bool      `json:"faceVerified"`
	Activated        bool      `json:"isActivated"`
	IsAdmin          bool      `json:"isAdmin"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Role maps the admin flag onto a policy role.
func (a Account) Role() string {
	if a.IsAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

type Position struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	MaxVotes    int         `json:"maxVotes"`
	Active      bool        `json:"isActive"`
	CreatedAt   time.Time   `json:"createdAt"`
	Candidates  []Candidate `json:"candidates,omitempty"`
}

type Candidate struct {
	ID           string    `json:"id"`
	PositionID   string    `json:"positionId"`
	FullName     string    `json:"fullName"`
	MatricNumber *string   `json:"matricNumber,omitempty"`
	Nickname     *string   `json:"nickname,omitempty"`
	ImageURL     *string   `json:"imageUrl,omitempty"`
	Active       bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

type VotingSession struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Active      bool      `json:"isActive"`
	CreatedBy   *string   `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Vote struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	PositionID  string    `json:"positionId"`
	CandidateID string    `json:"candidateId"`
	VotedAt     time.Time `json:"votedAt"`
}

// Request types

type CastVoteRequest struct {
	PositionID  string `json:"positionId" validate:"required"`
	CandidateID string `json:"candidateId" validate:"required"`
}

type UpdateDetailsRequest struct {
	MatricNumber string `json:"matricNumber" validate:"required,max=32"`
	FullName     string `json:"fullName" validate:"notblank,min=2,max=200"`
}

type SignInRequest struct {
	ExternalID      string `json:"externalId" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email"`
	FullName        string `json:"fullName" validate:"required,max=200"`
	ProfileImageURL string `json:"profileImageUrl" validate:"omitempty,url"`
}

type CreatePositionRequest struct {
	Title       string `json:"title" validate:"notblank,max=200"`
	Description string `json:"description" validate:"max=2000"`
	MaxVotes    int    `json:"maxVotes" validate:"gte=0,lte=50"`
}

type CreateCandidateRequest struct {
	PositionID   string `json:"positionId" validate:"required"`
	FullName     string `json:"fullName" validate:"required,max=200"`
	MatricNumber string `json:"matricNumber" validate:"max=32"`
	Nickname     string `json:"nickname" validate:"max=100"`
}

type UpdateCandidateRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type CreateSessionRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
}

// Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type SignInResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Account   Account   `json:"user"`
}

type VotingStatusResponse struct {
	IsActive bool           `json:"isActive"`
	Session  *VotingSession `json:"session,omitempty"`
}

// BallotPosition is an active position as seen by one voter.
type BallotPosition struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description *string     `json:"description,omitempty"`
	MaxVotes    int         `json:"maxVotes"`
	HasVoted    bool        `json:"hasVoted"`
	Candidates  []Candidate `json:"candidates"`
}

type VerificationStatus struct {
	HasMatricNumber  bool `json:"hasMatricNumber"`
	DocumentVerified bool `json:"documentVerified"`
	FaceVerified     bool `json:"faceVerified"`
	IsActivated      bool `json:"isActivated"`
}

type MyVote struct {
	PositionID    string    `json:"positionId"`
	PositionTitle string    `json:"positionTitle"`
	CandidateID   string    `json:"candidateId"`
	CandidateName string    `json:"candidateName"`
	VotedAt       time.Time `json:"votedAt"`
}

// positionId -> candidateId -> count
type ResultsResponse map[string]map[string]int

type CandidateResult struct {
	CandidateID string  `json:"candidateId"`
	FullName    string  `json:"fullName"`
	Nickname    *string `json:"nickname,omitempty"`
	Votes       int     `json:"votes"`
}

type PositionResult struct {
	PositionID string            `json:"positionId"`
	Title      string            `json:"title"`
	TotalVotes int               `json:"totalVotes"`
	Candidates []CandidateResult `json:"candidates"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Reason is set for ballot rejections so clients can tell them apart.
	Reason string `json:"reason,omitempty"`
}
