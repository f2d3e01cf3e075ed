package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/dcache"
)

type counting struct {
	dcache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (c *counting) add(e string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *counting) LockTimeout(cache string)  { c.add("timeout " + cache) }
func (c *counting) ClearSkipped(cache string) { c.add("skipped " + cache) }

func TestDeliversBeforeClose(t *testing.T) {
	inner := &counting{}
	h := New(inner, 2, 16)
	h.LockTimeout("users")
	h.ClearSkipped("orders")
	h.LockWaited("users", time.Millisecond)
	h.Close()

	if len(inner.events) != 2 {
		t.Fatalf("events=%v", inner.events)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}

func TestDropsWhenFull(t *testing.T) {
	inner := &counting{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one in the worker, one queued, the rest dropped
	for i := 0; i < 10; i++ {
		h.LockTimeout("users")
	}
	close(inner.block)
	h.Close()

	if got := uint64(len(inner.events)) + h.Dropped(); got != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", len(inner.events), h.Dropped())
	}
	if h.Dropped() == 0 {
		t.Fatalf("expected drops")
	}
}

func TestAfterClose(t *testing.T) {
	h := New(dcache.NopHooks{}, 1, 4)
	h.Close()
	h.Close()
	h.TxAborted("users", "k")
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}
