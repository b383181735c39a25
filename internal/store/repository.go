package store

import (
	"context"
	"time"

	"sessionlimit/internal/domain"
)

// SessionRepository is the persistence contract the session service relies
// on. SessionStore is the gorm implementation.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	ListActive(ctx context.Context, userID domain.UserID) ([]domain.Session, error)
	CountActive(ctx context.Context, userID domain.UserID) (int64, error)
	Deactivate(ctx context.Context, userID domain.UserID, id domain.SessionID, at time.Time, reason string) (bool, error)
	Touch(ctx context.Context, id domain.SessionID, at time.Time) (bool, error)
	DeactivateOlderThan(ctx context.Context, userID domain.UserID, cutoff, at time.Time) (int64, error)
	DeactivateAllOlderThan(ctx context.Context, cutoff, at time.Time) (int64, error)
	GetByToken(ctx context.Context, token string) (*domain.Session, error)

	// WithinTx runs fn against a repository bound to one transaction.
	WithinTx(ctx context.Context, fn func(tx SessionRepository) error) error
}

var _ SessionRepository = (*SessionStore)(nil)

func (ss *SessionStore) WithinTx(ctx context.Context, fn func(tx SessionRepository) error) error {
	return (&Store{DB: ss.db}).WithTx(ctx, func(tx *Store) error {
		return fn(tx.Sessions())
	})
}
