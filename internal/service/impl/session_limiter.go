package impl

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"sessionlimit/internal/device"
	"sessionlimit/internal/domain"
	"sessionlimit/internal/events"
	"sessionlimit/internal/lock"
	"sessionlimit/internal/netutil"
	"sessionlimit/internal/observability/metrics"
	"sessionlimit/internal/service"
	"sessionlimit/internal/store"

	"github.com/google/uuid"
)

const (
	DefaultMaxDevices    = 3
	DefaultSessionExpiry = 30 * time.Minute

	tokenBytes = 32
)

var _ service.SessionService = (*SessionLimiter)(nil)

// errLimitReached aborts the creation transaction so that a forced eviction
// is rolled back when it did not free a slot.
var errLimitReached = errors.New("device limit reached")

type LimiterConfig struct {
	MaxDevices int
	Expiry     time.Duration
}

// SessionLimiter enforces the per-user cap on active sessions.
//
// Concurrency: every CreateSession for a user runs sweep, optional eviction,
// count and insert while holding a lock keyed by the user id, and confirms
// the lock is still held before the insert commits. The default lock is
// in-process; multi-instance deployments must pass a shared locker
// (lock.Redis). Different users never share a lock.
type SessionLimiter struct {
	repo     store.SessionRepository
	sweeper  *Sweeper
	cfg      LimiterConfig
	opts     options
	newToken func() (string, error)
}

func NewSessionLimiter(repo store.SessionRepository, cfg LimiterConfig, opts ...Option) (*SessionLimiter, error) {
	if repo == nil {
		return nil, errors.New("session repository not configured")
	}
	if cfg.MaxDevices == 0 {
		cfg.MaxDevices = DefaultMaxDevices
	}
	if cfg.MaxDevices < 0 {
		return nil, fmt.Errorf("max devices per user must be > 0, got %d", cfg.MaxDevices)
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultSessionExpiry
	}
	o := buildOptions(opts)
	return &SessionLimiter{
		repo:     repo,
		sweeper:  &Sweeper{repo: repo, expiry: cfg.Expiry, opts: o},
		cfg:      cfg,
		opts:     o,
		newToken: newSessionToken,
	}, nil
}

func (l *SessionLimiter) MaxDevices() int { return l.cfg.MaxDevices }

// Sweeper exposes the limiter's expiry sweeper for background scheduling.
func (l *SessionLimiter) Sweeper() *Sweeper { return l.sweeper }

func (l *SessionLimiter) CreateSession(ctx context.Context, req service.CreateSessionRequest) (*service.CreateResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		metrics.SessionCreateAttemptsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, domain.Invalid("user id is required")
	}
	if req.ForceSessionID != nil && *req.ForceSessionID == uuid.Nil {
		metrics.SessionCreateAttemptsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, domain.Invalid("session id to replace is required")
	}

	res, err := l.createLocked(ctx, userID, req)
	switch {
	case err == nil && res.Outcome == service.OutcomeCreated:
		metrics.SessionCreateAttemptsTotal.WithLabelValues(metrics.ResultCreated).Inc()
	case err == nil:
		metrics.SessionCreateAttemptsTotal.WithLabelValues(metrics.ResultLimitExceeded).Inc()
	case errors.Is(err, domain.ErrSessionNotFound):
		metrics.SessionCreateAttemptsTotal.WithLabelValues(metrics.ResultNotFound).Inc()
	default:
		metrics.SessionCreateAttemptsTotal.WithLabelValues(metrics.ResultError).Inc()
		l.opts.logger.ErrorContext(ctx, "create session failed", "user_id", userID, "error", err)
	}
	return res, err
}

func (l *SessionLimiter) createLocked(ctx context.Context, userID domain.UserID, req service.CreateSessionRequest) (*service.CreateResult, error) {
	lease, err := l.opts.locks.Lock(ctx, userID)
	if err != nil {
		return nil, &domain.StorageError{Op: "lock user", Err: err}
	}
	defer lease.Release()
	parent := ctx
	ctx = lease.Context()

	now := l.opts.nowTime()
	if _, err := l.sweeper.SweepExpired(ctx, userID, now.Add(-l.cfg.Expiry)); err != nil {
		return nil, err
	}

	token, err := l.newToken()
	if err != nil {
		return nil, err
	}
	ip := req.IPAddress
	if ip == "" {
		ip = "unknown"
	}
	sess := &domain.Session{
		ID:           uuid.New(),
		UserID:       userID,
		Token:        token,
		Device:       device.Classify(req.UserAgent),
		IPAddress:    ip,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}

	err = l.repo.WithinTx(ctx, func(tx store.SessionRepository) error {
		if req.ForceSessionID != nil {
			ok, err := tx.Deactivate(ctx, userID, *req.ForceSessionID, now, domain.EndReasonEvicted)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrSessionNotFound
			}
		}

		n, err := tx.CountActive(ctx, userID)
		if err != nil {
			return err
		}
		if n >= int64(l.cfg.MaxDevices) {
			return errLimitReached
		}

		if err := tx.Create(ctx, sess); err != nil {
			return err
		}
		return lease.Confirm(ctx)
	})
	if err != nil && ctx.Err() != nil && parent.Err() == nil {
		// The lease lapsed mid-transaction and cancelled it.
		err = lock.ErrLockLost
	}
	if errors.Is(err, lock.ErrLockLost) || errors.Is(err, lock.ErrRedisUnavailable) {
		return nil, &domain.StorageError{Op: "confirm user lock", Err: err}
	}
	if errors.Is(err, errLimitReached) {
		// Read after rollback so a forced eviction that was undone shows up.
		active, err := l.repo.ListActive(ctx, userID)
		if err != nil {
			return nil, err
		}
		res := &service.CreateResult{
			Outcome:        service.OutcomeLimitExceeded,
			ActiveSessions: active,
			MaxDevices:     l.cfg.MaxDevices,
		}
		l.opts.events.Publish(ctx, events.DeviceLimitReached{
			UserID: userID, Active: len(res.ActiveSessions), MaxDevices: l.cfg.MaxDevices, At: now,
		})
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	res := &service.CreateResult{
		Outcome:    service.OutcomeCreated,
		Session:    sess,
		MaxDevices: l.cfg.MaxDevices,
	}

	if req.ForceSessionID != nil {
		metrics.SessionEvictionsTotal.Inc()
		l.opts.events.Publish(ctx, events.SessionEvicted{
			SessionID: req.ForceSessionID.String(), UserID: userID, ReplacedByID: sess.ID.String(), At: now,
		})
	}
	l.opts.events.Publish(ctx, events.SessionCreated{
		SessionID: sess.ID.String(), UserID: userID, Browser: sess.Device.Browser, IPAddress: sess.IPAddress, At: now,
	})
	return res, nil
}

func (l *SessionLimiter) ListActiveSessions(ctx context.Context, userID domain.UserID) ([]domain.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Invalid("user id is required")
	}
	return l.repo.ListActive(ctx, userID)
}

// TerminateSession ends one of the user's sessions. False means no active
// session with that id is owned by the user.
func (l *SessionLimiter) TerminateSession(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, domain.Invalid("user id is required")
	}
	if sessionID == uuid.Nil {
		return false, domain.Invalid("session id is required")
	}
	now := l.opts.nowTime()
	ok, err := l.repo.Deactivate(ctx, userID, sessionID, now, domain.EndReasonTerminated)
	if err != nil || !ok {
		return false, err
	}
	metrics.SessionsTerminatedTotal.Inc()
	l.opts.events.Publish(ctx, events.SessionTerminated{SessionID: sessionID.String(), UserID: userID, At: now})
	return true, nil
}

// ValidateSession answers "is this device still logged in" by comparing the
// browser label of descriptor with the labels of the user's active sessions.
// It is a heuristic for UI state, not an authentication check. A match
// counts as activity on the matched session.
func (l *SessionLimiter) ValidateSession(ctx context.Context, userID domain.UserID, descriptor string) (service.ValidationResult, error) {
	if strings.TrimSpace(userID) == "" {
		return service.ValidationResult{}, domain.Invalid("user id is required")
	}
	label := device.Classify(descriptor)
	if label.Browser == domain.Unknown {
		return service.ValidationResult{}, nil
	}

	active, err := l.repo.ListActive(ctx, userID)
	if err != nil {
		return service.ValidationResult{}, err
	}
	var match *domain.Session
	for i := range active {
		s := &active[i]
		if s.Device.Browser != label.Browser {
			continue
		}
		if match == nil || s.LastActivity.After(match.LastActivity) {
			match = s
		}
	}
	if match == nil {
		return service.ValidationResult{}, nil
	}
	if _, err := l.repo.Touch(ctx, match.ID, l.opts.nowTime()); err != nil {
		return service.ValidationResult{}, err
	}
	return service.ValidationResult{Valid: true, SessionID: match.ID}, nil
}

func (l *SessionLimiter) ResolveToken(ctx context.Context, userID domain.UserID, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > netutil.MaxDescriptorLength {
		return nil, domain.ErrSessionNotFound
	}
	s, err := l.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID || !s.IsActive {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// TouchSession records activity on the session identified by token.
func (l *SessionLimiter) TouchSession(ctx context.Context, userID domain.UserID, token string) (bool, error) {
	s, err := l.ResolveToken(ctx, userID, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return l.repo.Touch(ctx, s.ID, l.opts.nowTime())
}

func newSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
