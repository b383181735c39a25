package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"sessionlimit/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionStore persists sessions. Rows are only ever deactivated, never
// deleted, so the table doubles as an audit trail.
type SessionStore struct{ db *gorm.DB }

func (s *Store) Sessions() *SessionStore { return &SessionStore{db: s.DB} }

func (ss *SessionStore) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if err := ss.db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return storageErr("create", domain.ErrDuplicateToken)
		}
		return storageErr("create", err)
	}
	return nil
}

// ListActive returns the user's active sessions, oldest first.
func (ss *SessionStore) ListActive(ctx context.Context, userID domain.UserID) ([]domain.Session, error) {
	var out []domain.Session
	err := ss.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, storageErr("list active", err)
	}
	return out, nil
}

func (ss *SessionStore) CountActive(ctx context.Context, userID domain.UserID) (int64, error) {
	var n int64
	err := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&n).Error
	if err != nil {
		return 0, storageErr("count active", err)
	}
	return n, nil
}

// Deactivate ends one session if it belongs to userID and is still active.
// Calling it again for the same session reports false, not an error.
func (ss *SessionStore) Deactivate(ctx context.Context, userID domain.UserID, id domain.SessionID, at time.Time, reason string) (bool, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND user_id = ? AND is_active = ?", id, userID, true).
		Updates(endColumns(at, reason))
	if tx.Error != nil {
		return false, storageErr("deactivate", tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (ss *SessionStore) Touch(ctx context.Context, id domain.SessionID, at time.Time) (bool, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("last_activity", at)
	if tx.Error != nil {
		return false, storageErr("touch", tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

// DeactivateOlderThan expires the user's active sessions whose last activity
// is strictly before cutoff.
func (ss *SessionStore) DeactivateOlderThan(ctx context.Context, userID domain.UserID, cutoff, at time.Time) (int64, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("user_id = ? AND is_active = ? AND last_activity < ?", userID, true, cutoff).
		Updates(endColumns(at, domain.EndReasonExpired))
	if tx.Error != nil {
		return 0, storageErr("expire", tx.Error)
	}
	return tx.RowsAffected, nil
}

func (ss *SessionStore) DeactivateAllOlderThan(ctx context.Context, cutoff, at time.Time) (int64, error) {
	tx := ss.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("is_active = ? AND last_activity < ?", true, cutoff).
		Updates(endColumns(at, domain.EndReasonExpired))
	if tx.Error != nil {
		return 0, storageErr("expire all", tx.Error)
	}
	return tx.RowsAffected, nil
}

func (ss *SessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	if err := ss.db.WithContext(ctx).First(&s, "token = ?", token).Error; err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, storageErr("get by token", err)
	}
	return &s, nil
}

func endColumns(at time.Time, reason string) map[string]any {
	return map[string]any{
		"is_active":  false,
		"ended_at":   at,
		"end_reason": reason,
	}
}

// isUniqueViolation recognises unique-constraint failures from both postgres
// (SQLSTATE 23505) and sqlite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "23505") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
