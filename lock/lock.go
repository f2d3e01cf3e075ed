// Package lock implements the per-cache lease lock: a single key holding a
// random token, set with NX and a lease, released by compare-and-delete.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/dcache/provider"
)

// ErrTimeout is returned when the lock is still held after MaxRetries polls.
var ErrTimeout = errors.New("dcache: timed out waiting for cache lock")

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

type Config struct {
	Lease      time.Duration `yaml:"lease"`      // default 30s
	Backoff    time.Duration `yaml:"backoff"`    // default 300ms
	MaxRetries int           `yaml:"maxRetries"` // default 100
}

func (c Config) withDefaults() Config {
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 300 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 100
	}
	return c
}

type Locker struct {
	p   provider.Provider
	cfg Config
}

func New(p provider.Provider, cfg Config) *Locker {
	return &Locker{p: p, cfg: cfg.withDefaults()}
}

// Lease is a held lock. Release is idempotent and never removes a lock taken
// over by someone else after the lease expired.
type Lease struct {
	l     *Locker
	key   []byte
	token string
}

// TryAcquire makes a single attempt.
func (l *Locker) TryAcquire(ctx context.Context, key []byte) (*Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.p.SetNX(ctx, key, []byte(token), l.cfg.Lease)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lease{l: l, key: key, token: token}, true, nil
}

// Acquire retries TryAcquire with backoff until it succeeds, MaxRetries is
// exhausted (ErrTimeout) or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key []byte) (*Lease, error) {
	for i := 0; ; i++ {
		ls, ok, err := l.TryAcquire(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return ls, nil
		}
		if i >= l.cfg.MaxRetries {
			return nil, ErrTimeout
		}
		if err := sleep(ctx, l.cfg.Backoff); err != nil {
			return nil, err
		}
	}
}

// Wait blocks while key is held by anyone and reports how long it waited
// (0 when the lock was free).
func (l *Locker) Wait(ctx context.Context, key []byte) (time.Duration, error) {
	start := time.Now()
	for i := 0; ; i++ {
		held, err := l.p.Exists(ctx, key)
		if err != nil {
			return time.Since(start), err
		}
		if !held {
			if i == 0 {
				return 0, nil
			}
			return time.Since(start), nil
		}
		if i >= l.cfg.MaxRetries {
			return time.Since(start), ErrTimeout
		}
		if err := sleep(ctx, l.cfg.Backoff); err != nil {
			return time.Since(start), err
		}
	}
}

func (ls *Lease) Release(ctx context.Context) error {
	if ls == nil {
		return nil
	}
	_, err := ls.l.p.Eval(ctx, releaseScript, [][]byte{ls.key}, ls.token)
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
