// Package otelhooks exports dcache hook events as OpenTelemetry metrics.
//
//	h, err := otelhooks.New(otel.Meter("dcache"))
//	exec, _ := dcache.New(dcache.Options{Source: src, CacheManager: mgr, Hooks: h})
package otelhooks

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/dcache"
)

const (
	attrCache = attribute.Key("dcache.cache")
	attrOp    = attribute.Key("dcache.op")
)

// Hooks records counters per cache. Instruments are created once in New.
type Hooks struct {
	lockWaits     metric.Int64Counter
	lockWaitTime  metric.Float64Histogram
	lockTimeouts  metric.Int64Counter
	clearsSkipped metric.Int64Counter
	txAborted     metric.Int64Counter
	suppressed    metric.Int64Counter
}

var _ dcache.Hooks = (*Hooks)(nil)

func New(m metric.Meter) (*Hooks, error) {
	var (
		h   Hooks
		err error
	)
	if h.lockWaits, err = m.Int64Counter("dcache.lock.waits",
		metric.WithDescription("Reads or writes that waited for a cache lock")); err != nil {
		return nil, err
	}
	if h.lockWaitTime, err = m.Float64Histogram("dcache.lock.wait_time",
		metric.WithDescription("Time spent waiting for a cache lock"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if h.lockTimeouts, err = m.Int64Counter("dcache.lock.timeouts",
		metric.WithDescription("Cache locks still held after the retry budget")); err != nil {
		return nil, err
	}
	if h.clearsSkipped, err = m.Int64Counter("dcache.clear.skipped",
		metric.WithDescription("Clears skipped because the cache lock was held")); err != nil {
		return nil, err
	}
	if h.txAborted, err = m.Int64Counter("dcache.tx.aborted",
		metric.WithDescription("Write-through transactions lost to a concurrent writer")); err != nil {
		return nil, err
	}
	if h.suppressed, err = m.Int64Counter("dcache.store.errors_suppressed",
		metric.WithDescription("Store errors swallowed by the error handler")); err != nil {
		return nil, err
	}
	return &h, nil
}

func cacheAttr(cache string) metric.MeasurementOption {
	return metric.WithAttributes(attrCache.String(cache))
}

func (h *Hooks) LockWaited(cache string, waited time.Duration) {
	ctx := context.Background()
	h.lockWaits.Add(ctx, 1, cacheAttr(cache))
	h.lockWaitTime.Record(ctx, float64(waited)/float64(time.Millisecond), cacheAttr(cache))
}

func (h *Hooks) LockTimeout(cache string) {
	h.lockTimeouts.Add(context.Background(), 1, cacheAttr(cache))
}

func (h *Hooks) ClearSkipped(cache string) {
	h.clearsSkipped.Add(context.Background(), 1, cacheAttr(cache))
}

// TxAborted counts per cache only; keys would explode cardinality.
func (h *Hooks) TxAborted(cache, _ string) {
	h.txAborted.Add(context.Background(), 1, cacheAttr(cache))
}

func (h *Hooks) StoreErrorSuppressed(op, cache string, _ error) {
	h.suppressed.Add(context.Background(), 1, metric.WithAttributes(attrCache.String(cache), attrOp.String(op)))
}
