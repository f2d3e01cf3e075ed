// Package provider defines the command surface dcache needs from a Redis-like
// backing store.
//
// Implementations MUST be byte-for-byte transparent: Get/HGet return exactly
// the bytes previously written. They must be safe for concurrent use.
//
// Keys ending in "~lock" and "~keys" are owned by dcache (per-cache lock and
// known-keys index). External code MUST NOT write under them.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrTxAborted is returned by Batch when a watched key changed before EXEC.
var ErrTxAborted = errors.New("provider: transaction aborted")

// Provider is the backing-store command channel.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Exists(ctx context.Context, key []byte) (bool, error)
	HGet(ctx context.Context, key, field []byte) ([]byte, bool, error)

	// SetNX stores value only if key is absent. ttl <= 0 means no expiry.
	SetNX(ctx context.Context, key, value []byte, ttl time.Duration) (bool, error)

	// Del removes keys. On clusters keys are deleted one by one.
	Del(ctx context.Context, keys ...[]byte) error

	ZRange(ctx context.Context, key []byte, start, stop int64) ([][]byte, error)

	// Keys enumerates keys matching pattern (on clusters: across all masters).
	Keys(ctx context.Context, pattern []byte) ([][]byte, error)

	// Eval runs a Lua script.
	Eval(ctx context.Context, script string, keys [][]byte, args ...any) (any, error)

	// Batch runs fn and applies the recorded commands. On a single node the
	// commands form one MULTI/EXEC transaction, guarded by WATCH on watch keys
	// (ErrTxAborted if any changed). On a cluster they are issued unbatched and
	// watch is ignored. If fn returns an error nothing is applied.
	Batch(ctx context.Context, fn func(Cmds) error, watch ...[]byte) error

	// IsCluster reports a multi-slot connection (no cross-slot transactions,
	// no pattern scripts).
	IsCluster() bool

	Close(ctx context.Context) error
}

// Cmds records write commands inside Batch. Errors surface from Batch.
type Cmds interface {
	Set(key, value []byte)
	Expire(key []byte, ttl time.Duration)
	Del(keys ...[]byte)
	HSet(key, field, value []byte)
	HDel(key []byte, fields ...[]byte)
	ZAdd(key []byte, score float64, member []byte)
	ZRem(key []byte, members ...[]byte)
}
