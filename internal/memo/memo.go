// Package memo is a bounded, concurrency-safe memo table. Keys of any
// comparable type are interned to uint64 ids so the underlying ristretto
// cache only ever hashes integers, and concurrent misses on the same key are
// collapsed into a single computation.
package memo

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	rc "github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

const defaultSize = 4096

type Memo[K comparable, V any] struct {
	c *rc.Cache
	g singleflight.Group

	ids  sync.Map // K -> uint64
	next atomic.Uint64
}

// New returns a memo holding up to size entries (0 => 4096).
func New[K comparable, V any](size int64) (*Memo[K, V], error) {
	if size <= 0 {
		size = defaultSize
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Memo[K, V]{c: c}, nil
}

// intern returns a stable id for k. The id space grows with the number of
// distinct keys ever seen, which for call-site identities is bounded by code.
func (m *Memo[K, V]) intern(k K) uint64 {
	if id, ok := m.ids.Load(k); ok {
		return id.(uint64)
	}
	id, _ := m.ids.LoadOrStore(k, m.next.Add(1))
	return id.(uint64)
}

func (m *Memo[K, V]) Get(k K) (V, bool) {
	v, ok := m.c.Get(m.intern(k))
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set offers v to the memo and reports whether it was buffered. Ristretto's
// admission policy may still drop a buffered entry once the memo is full, so
// a later Get can miss either way; callers must be ready to recompute.
func (m *Memo[K, V]) Set(k K, v V) bool {
	if !m.c.Set(m.intern(k), v, 1) {
		return false
	}
	m.c.Wait()
	return true
}

// Do returns the memoized value for k, computing it with fn on a miss.
// Errors are returned to every waiter and are not memoized.
func (m *Memo[K, V]) Do(k K, fn func() (V, error)) (V, error) {
	if v, ok := m.Get(k); ok {
		return v, nil
	}
	id := m.intern(k)
	res, err, _ := m.g.Do(strconv.FormatUint(id, 10), func() (any, error) {
		if v, ok := m.c.Get(id); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		m.c.Set(id, v, 1)
		m.c.Wait()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, ok := res.(V)
	if !ok && res != nil {
		var zero V
		return zero, errors.New("memo: unexpected entry type")
	}
	return v, nil
}

// Clear drops every entry. Interned ids are kept.
func (m *Memo[K, V]) Clear() { m.c.Clear() }

func (m *Memo[K, V]) Close() { m.c.Close() }
