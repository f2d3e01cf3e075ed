// Package asynchook moves hook delivery off the caller's goroutine.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{LockWaitEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	mgr, _ := store.NewManager(store.ManagerOptions{Provider: p, Hooks: hooks})
//	exec, _ := dcache.New(dcache.Options{Source: src, CacheManager: mgr, Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/dcache"
)

type Hooks struct {
	inner   dcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ dcache.Hooks = (*Hooks)(nil)

func New(inner dcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) LockWaited(c string, d time.Duration) { h.try(func() { h.inner.LockWaited(c, d) }) }
func (h *Hooks) LockTimeout(c string)                 { h.try(func() { h.inner.LockTimeout(c) }) }
func (h *Hooks) ClearSkipped(c string)                { h.try(func() { h.inner.ClearSkipped(c) }) }
func (h *Hooks) TxAborted(c, k string)                { h.try(func() { h.inner.TxAborted(c, k) }) }
func (h *Hooks) StoreErrorSuppressed(op, c string, err error) {
	h.try(func() { h.inner.StoreErrorSuppressed(op, c, err) })
}
