// Package lock provides per-key mutual exclusion. The session service takes
// a lock keyed by user id around its check-then-insert sequence so that two
// concurrent logins for one user cannot both pass the device limit.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockLost is returned by Lease.Confirm once the hold has expired or been
// taken over.
var ErrLockLost = errors.New("lock lost")

// Lease is one hold on a key.
type Lease interface {
	// Context is derived from the context passed to Lock and is cancelled
	// when the lease is released or lost.
	Context() context.Context
	// Confirm reports whether the hold is still owned. Callers check it
	// right before committing work the lock protects.
	Confirm(ctx context.Context) error
	// Release gives the key up. Calling it more than once is a no-op.
	Release()
}

// Locker hands out exclusive, context-aware locks per key.
type Locker interface {
	Lock(ctx context.Context, key string) (Lease, error)
}

// Local is an in-process keyed mutex. Keys never contend with each other and
// idle entries are dropped so the map does not grow with the user base.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (Lease, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	hctx, cancel := context.WithCancel(ctx)
	return &localLease{ctx: hctx, cancel: cancel, unlock: func() {
		<-s.ch
		l.release(key, s)
	}}, nil
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

type localLease struct {
	ctx    context.Context
	cancel context.CancelFunc
	unlock func()
	once   sync.Once
	done   bool
	mu     sync.Mutex
}

func (l *localLease) Context() context.Context { return l.ctx }

// Confirm always holds for an in-process lock until Release.
func (l *localLease) Confirm(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return ErrLockLost
	}
	return nil
}

func (l *localLease) Release() {
	l.once.Do(func() {
		l.mu.Lock()
		l.done = true
		l.mu.Unlock()
		l.cancel()
		l.unlock()
	})
}
