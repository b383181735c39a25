package impl

import (
	"context"
	"time"

	"sessionlimit/internal/domain"
	"sessionlimit/internal/events"
	"sessionlimit/internal/observability/metrics"
	"sessionlimit/internal/store"
)

// Sweeper deactivates sessions whose last activity is older than the expiry
// horizon. It only lowers active counts and does not take the per-user lock.
type Sweeper struct {
	repo   store.SessionRepository
	expiry time.Duration
	opts   options
}

func NewSweeper(repo store.SessionRepository, expiry time.Duration, opts ...Option) *Sweeper {
	return &Sweeper{repo: repo, expiry: expiry, opts: buildOptions(opts)}
}

// Cutoff is the last-activity instant before which sessions count as expired.
func (s *Sweeper) Cutoff() time.Time {
	return s.opts.nowTime().Add(-s.expiry)
}

// SweepExpired expires the user's sessions with last activity strictly
// before cutoff and reports how many were deactivated.
func (s *Sweeper) SweepExpired(ctx context.Context, userID domain.UserID, cutoff time.Time) (int, error) {
	now := s.opts.nowTime()
	n, err := s.repo.DeactivateOlderThan(ctx, userID, cutoff, now)
	if err != nil {
		return 0, err
	}
	s.record(ctx, userID, int(n), cutoff, now)
	return int(n), nil
}

// SweepAll expires stale sessions of every user.
func (s *Sweeper) SweepAll(ctx context.Context) (int, error) {
	now := s.opts.nowTime()
	cutoff := now.Add(-s.expiry)
	n, err := s.repo.DeactivateAllOlderThan(ctx, cutoff, now)
	if err != nil {
		return 0, err
	}
	s.record(ctx, "", int(n), cutoff, now)
	return int(n), nil
}

// Run sweeps every interval until ctx is done. Failures are logged and the
// next tick tries again.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	s.opts.logger.Info("session sweeper started", "interval", interval.String(), "expiry", s.expiry.String())
	for {
		select {
		case <-ctx.Done():
			s.opts.logger.Info("session sweeper stopped")
			return
		case <-t.C:
			if _, err := s.SweepAll(ctx); err != nil && ctx.Err() == nil {
				s.opts.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) record(ctx context.Context, userID domain.UserID, n int, cutoff, at time.Time) {
	if n == 0 {
		return
	}
	metrics.SessionsExpiredTotal.Add(float64(n))
	s.opts.logger.InfoContext(ctx, "expired sessions", "user_id", userID, "count", n, "cutoff", cutoff)
	s.opts.events.Publish(ctx, events.SessionsExpired{UserID: userID, Count: n, Cutoff: cutoff, At: at})
}
