package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"sessionlimit/internal/domain"
	"sessionlimit/internal/events"
	"sessionlimit/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	firefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openSQLiteRepo(t *testing.T) *store.SessionStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	st := store.New(db)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st.Sessions()
}

// memoryRepo is a SessionRepository without transactional isolation: each
// call locks on its own, so concurrent callers interleave between the count
// and the insert exactly like independent database connections would.
type memoryRepo struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*domain.Session

	failCreate error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[domain.SessionID]*domain.Session)}
}

func (m *memoryRepo) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return &domain.StorageError{Op: "create", Err: m.failCreate}
	}
	for _, existing := range m.sessions {
		if existing.Token == s.Token {
			return &domain.StorageError{Op: "create", Err: domain.ErrDuplicateToken}
		}
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memoryRepo) ListActive(_ context.Context, userID domain.UserID) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) CountActive(_ context.Context, userID domain.UserID) (int64, error) {
	m.mu.Lock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			n++
		}
	}
	m.mu.Unlock()
	// Widen the window between the check and the following insert.
	runtime.Gosched()
	time.Sleep(time.Millisecond)
	return n, nil
}

func (m *memoryRepo) Deactivate(_ context.Context, userID domain.UserID, id domain.SessionID, at time.Time, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID || !s.IsActive {
		return false, nil
	}
	end(s, at, reason)
	return true, nil
}

func (m *memoryRepo) Touch(_ context.Context, id domain.SessionID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.LastActivity = at
	return true, nil
}

func (m *memoryRepo) DeactivateOlderThan(_ context.Context, userID domain.UserID, cutoff, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive && s.LastActivity.Before(cutoff) {
			end(s, at, domain.EndReasonExpired)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) DeactivateAllOlderThan(_ context.Context, cutoff, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.sessions {
		if s.IsActive && s.LastActivity.Before(cutoff) {
			end(s, at, domain.EndReasonExpired)
			n++
		}
	}
	return n, nil
}

func (m *memoryRepo) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

// WithinTx only undoes writes when fn fails; it provides no isolation.
func (m *memoryRepo) WithinTx(_ context.Context, fn func(tx store.SessionRepository) error) error {
	m.mu.Lock()
	snapshot := make(map[domain.SessionID]domain.Session, len(m.sessions))
	for id, s := range m.sessions {
		snapshot[id] = *s
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.sessions = make(map[domain.SessionID]*domain.Session, len(snapshot))
		for id, s := range snapshot {
			cp := s
			m.sessions[id] = &cp
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryRepo) activeCount(userID domain.UserID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			n++
		}
	}
	return n
}

func end(s *domain.Session, at time.Time, reason string) {
	s.IsActive = false
	t := at
	s.EndedAt = &t
	s.EndReason = reason
}

func newTestLimiter(t *testing.T, repo store.SessionRepository, clock *fakeClock, rec *events.Recorder, extra ...Option) *SessionLimiter {
	t.Helper()
	opts := []Option{WithClock(clock.Now), WithLogger(discardLogger), WithPublisher(rec)}
	opts = append(opts, extra...)
	l, err := NewSessionLimiter(repo, LimiterConfig{MaxDevices: 3, Expiry: 30 * time.Minute}, opts...)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l
}
