package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newHooks(opts Options) (*bytes.Buffer, *Hooks) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &buf, New(l, opts)
}

func TestEvents(t *testing.T) {
	buf, h := newHooks(Options{})
	h.LockTimeout("users")
	h.ClearSkipped("users")
	h.StoreErrorSuppressed("put", "users", errors.New("down"))

	out := buf.String()
	for _, want := range []string{"dcache.lock_timeout", "dcache.clear_skipped", "dcache.store_error_suppressed", "err=down", "op=put"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestKeysRedacted(t *testing.T) {
	buf, h := newHooks(Options{})
	h.TxAborted("users", "secret-key")
	if strings.Contains(buf.String(), "secret-key") {
		t.Fatalf("key leaked: %s", buf.String())
	}

	buf, h = newHooks(Options{Redact: func(string) string { return "XX" }})
	h.TxAborted("users", "secret-key")
	if !strings.Contains(buf.String(), "key=XX") {
		t.Fatalf("custom redactor unused: %s", buf.String())
	}
}

func TestSampling(t *testing.T) {
	buf, h := newHooks(Options{LockWaitEvery: 3})
	for i := 0; i < 9; i++ {
		h.LockWaited("users", time.Millisecond)
	}
	if n := strings.Count(buf.String(), "dcache.lock_waited"); n != 3 {
		t.Fatalf("logged %d, want 3", n)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.LockTimeout("users")
	h.StoreErrorSuppressed("get", "users", errors.New("x"))
}
