// Package sloghooks reports dcache hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/dcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	LockWaitEvery  uint64
	TxAbortedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	lockWaitCtr  atomic.Uint64
	txAbortedCtr atomic.Uint64
}

var _ dcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) LockWaited(cache string, waited time.Duration) {
	if h.l == nil || !sample(h.opts.LockWaitEvery, &h.lockWaitCtr) {
		return
	}
	h.l.Debug("dcache.lock_waited",
		"cache", cache,
		"waited", waited)
}

func (h *Hooks) LockTimeout(cache string) {
	if h.l == nil {
		return
	}
	h.l.Warn("dcache.lock_timeout", "cache", cache)
}

func (h *Hooks) ClearSkipped(cache string) {
	if h.l == nil {
		return
	}
	h.l.Info("dcache.clear_skipped", "cache", cache)
}

func (h *Hooks) TxAborted(cache, key string) {
	if h.l == nil || !sample(h.opts.TxAbortedEvery, &h.txAbortedCtr) {
		return
	}
	h.l.Debug("dcache.tx_aborted",
		"cache", cache,
		"key", h.redact(key))
}

func (h *Hooks) StoreErrorSuppressed(op, cache string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("dcache.store_error_suppressed",
		"op", op,
		"cache", cache,
		"err", err)
}
