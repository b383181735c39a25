package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRedisUnavailable = errors.New("redis unavailable")

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

var (
	releaseLua = redis.NewScript(releaseScript)
	renewLua   = redis.NewScript(renewScript)
)

// Redis is a Locker shared by every instance talking to the same Redis.
// Each hold is a lease of ttl that a watchdog renews every ttl/3 while it is
// held, so a crashed holder frees the key after at most ttl. A holder whose
// lease lapses has its lease context cancelled and fails Confirm.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "sessionlock"
	}
	if ttl <= 0 {
		ttl = 40 * time.Second
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, poll: 20 * time.Millisecond}
}

func (r *Redis) key(k string) string { return r.prefix + ":" + k }

func (r *Redis) Lock(ctx context.Context, key string) (Lease, error) {
	owner, err := ownerToken()
	if err != nil {
		return nil, err
	}
	rk := r.key(key)

	wait := r.poll
	for {
		ok, err := r.client.SetNX(ctx, rk, owner, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		if wait < 250*time.Millisecond {
			wait *= 2
		}
	}

	hctx, cancel := context.WithCancel(ctx)
	l := &redisLease{r: r, key: rk, owner: owner, ctx: hctx, cancel: cancel, stop: make(chan struct{}), stopped: make(chan struct{})}
	go l.watch()
	return l, nil
}

type redisLease struct {
	r      *Redis
	key    string
	owner  string
	ctx    context.Context
	cancel context.CancelFunc

	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func (l *redisLease) Context() context.Context { return l.ctx }

// Confirm extends the lease and fails with ErrLockLost if the key no longer
// carries this holder's token.
func (l *redisLease) Confirm(ctx context.Context) error {
	if err := l.ctx.Err(); err != nil {
		return ErrLockLost
	}
	if err := l.renew(ctx); err != nil {
		l.cancel()
		return err
	}
	return nil
}

func (l *redisLease) renew(ctx context.Context) error {
	n, err := renewLua.Run(ctx, l.r.client, []string{l.key}, l.owner, l.r.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (l *redisLease) watch() {
	defer close(l.stopped)
	t := time.NewTicker(l.r.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-l.ctx.Done():
			return
		case <-t.C:
			rctx, cancel := context.WithTimeout(context.Background(), l.r.ttl/3)
			err := l.renew(rctx)
			cancel()
			if errors.Is(err, ErrLockLost) {
				l.cancel()
				return
			}
		}
	}
}

func (l *redisLease) Release() {
	l.once.Do(func() {
		close(l.stop)
		<-l.stopped
		l.cancel()
		// Release on a fresh context: the caller's may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseLua.Run(rctx, l.r.client, []string{l.key}, l.owner).Err()
	})
}

func ownerToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("lock owner: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
