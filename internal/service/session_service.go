package service

import (
	"context"

	"sessionlimit/internal/domain"
)

type CreateSessionRequest struct {
	UserID    domain.UserID
	UserAgent string
	IPAddress string
	// ForceSessionID names an active session of the same user to evict in
	// order to make room for the new one.
	ForceSessionID *domain.SessionID
}

type CreateOutcome int

const (
	OutcomeCreated CreateOutcome = iota + 1
	OutcomeLimitExceeded
)

func (o CreateOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "success"
	case OutcomeLimitExceeded:
		return "device_limit_exceeded"
	default:
		return "unknown"
	}
}

// CreateResult is either a new session (OutcomeCreated) or the list of
// sessions the caller may evict (OutcomeLimitExceeded). Hitting the limit is
// an expected outcome, not an error.
type CreateResult struct {
	Outcome        CreateOutcome
	Session        *domain.Session
	ActiveSessions []domain.Session
	MaxDevices     int
}

type ValidationResult struct {
	Valid     bool
	SessionID domain.SessionID
}

type SessionService interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateResult, error)
	ListActiveSessions(ctx context.Context, userID domain.UserID) ([]domain.Session, error)
	TerminateSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (bool, error)
	ValidateSession(ctx context.Context, userID domain.UserID, descriptor string) (ValidationResult, error)
	TouchSession(ctx context.Context, userID domain.UserID, token string) (bool, error)
	ResolveToken(ctx context.Context, userID domain.UserID, token string) (*domain.Session, error)
	MaxDevices() int
}
