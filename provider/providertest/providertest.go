// Package providertest holds a conformance suite shared by provider
// implementations. Backends run it against a miniredis instance.
package providertest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/dcache/provider"
)

// Factory builds a provider connected to the given miniredis server.
type Factory func(t *testing.T, mr *miniredis.Miniredis) provider.Provider

// Run exercises the provider contract.
func Run(t *testing.T, newProvider Factory) {
	t.Helper()
	ctx := context.Background()

	setup := func(t *testing.T) (*miniredis.Miniredis, provider.Provider) {
		mr := miniredis.RunT(t)
		p := newProvider(t, mr)
		t.Cleanup(func() { _ = p.Close(ctx) })
		return mr, p
	}

	t.Run("GetMissAndHit", func(t *testing.T) {
		mr, p := setup(t)
		if _, ok, err := p.Get(ctx, []byte("k")); err != nil || ok {
			t.Fatalf("miss: ok=%v err=%v", ok, err)
		}
		mr.Set("k", "\x00\x01v")
		b, ok, err := p.Get(ctx, []byte("k"))
		if err != nil || !ok || string(b) != "\x00\x01v" {
			t.Fatalf("hit: %q %v %v", b, ok, err)
		}
		if ok, err := p.Exists(ctx, []byte("k")); err != nil || !ok {
			t.Fatalf("exists: %v %v", ok, err)
		}
	})

	t.Run("BatchAppliesAll", func(t *testing.T) {
		mr, p := setup(t)
		err := p.Batch(ctx, func(c provider.Cmds) error {
			c.Set([]byte("a"), []byte("1"))
			c.Expire([]byte("a"), time.Minute)
			c.HSet([]byte("h"), []byte("f"), []byte("2"))
			c.ZAdd([]byte("idx"), 0, []byte("a"))
			c.ZAdd([]byte("idx"), 0, []byte("h"))
			return nil
		})
		if err != nil {
			t.Fatalf("Batch: %v", err)
		}
		if v, _ := mr.Get("a"); v != "1" {
			t.Fatalf("a=%q", v)
		}
		if ttl := mr.TTL("a"); ttl != time.Minute {
			t.Fatalf("ttl=%v", ttl)
		}
		if v := mr.HGet("h", "f"); v != "2" {
			t.Fatalf("h.f=%q", v)
		}
		b, ok, err := p.HGet(ctx, []byte("h"), []byte("f"))
		if err != nil || !ok || string(b) != "2" {
			t.Fatalf("HGet: %q %v %v", b, ok, err)
		}
		members, err := p.ZRange(ctx, []byte("idx"), 0, -1)
		if err != nil {
			t.Fatalf("ZRange: %v", err)
		}
		if diff := cmp.Diff([]string{"a", "h"}, strs(members)); diff != "" {
			t.Fatalf("index (-want +got):\n%s", diff)
		}

		err = p.Batch(ctx, func(c provider.Cmds) error {
			c.HDel([]byte("h"), []byte("f"))
			c.ZRem([]byte("idx"), []byte("h"))
			c.Del([]byte("a"))
			return nil
		})
		if err != nil {
			t.Fatalf("Batch del: %v", err)
		}
		if mr.Exists("a") || mr.Exists("h") {
			t.Fatalf("keys should be gone: %v", mr.Keys())
		}
		if members, _ := p.ZRange(ctx, []byte("idx"), 0, -1); len(members) != 0 {
			t.Fatalf("index not trimmed: %q", members)
		}
	})

	t.Run("BatchFnErrorAppliesNothing", func(t *testing.T) {
		mr, p := setup(t)
		boom := errors.New("boom")
		err := p.Batch(ctx, func(c provider.Cmds) error {
			c.Set([]byte("a"), []byte("1"))
			return boom
		}, []byte("a"))
		if !errors.Is(err, boom) {
			t.Fatalf("want boom, got %v", err)
		}
		if mr.Exists("a") {
			t.Fatalf("nothing must be written")
		}
	})

	t.Run("BatchWatchAborts", func(t *testing.T) {
		mr, p := setup(t)
		err := p.Batch(ctx, func(c provider.Cmds) error {
			// concurrent writer between WATCH and EXEC
			mr.Set("w", "other")
			c.Set([]byte("w"), []byte("mine"))
			return nil
		}, []byte("w"))
		if !errors.Is(err, provider.ErrTxAborted) {
			t.Fatalf("want ErrTxAborted, got %v", err)
		}
		if v, _ := mr.Get("w"); v != "other" {
			t.Fatalf("w=%q", v)
		}
	})

	t.Run("SetNX", func(t *testing.T) {
		mr, p := setup(t)
		ok, err := p.SetNX(ctx, []byte("n"), []byte("first"), time.Second)
		if err != nil || !ok {
			t.Fatalf("first SetNX: %v %v", ok, err)
		}
		ok, err = p.SetNX(ctx, []byte("n"), []byte("second"), 0)
		if err != nil || ok {
			t.Fatalf("second SetNX: %v %v", ok, err)
		}
		if v, _ := mr.Get("n"); v != "first" {
			t.Fatalf("n=%q", v)
		}
		if mr.TTL("n") <= 0 {
			t.Fatalf("ttl not applied")
		}
		mr.FastForward(2 * time.Second)
		if mr.Exists("n") {
			t.Fatalf("n should expire")
		}
	})

	t.Run("KeysDelEval", func(t *testing.T) {
		mr, p := setup(t)
		mr.Set("c:1", "x")
		mr.Set("c:2", "y")
		mr.Set("d:1", "z")
		keys, err := p.Keys(ctx, []byte("c:*"))
		if err != nil {
			t.Fatalf("Keys: %v", err)
		}
		got := strs(keys)
		sort.Strings(got)
		if diff := cmp.Diff([]string{"c:1", "c:2"}, got); diff != "" {
			t.Fatalf("keys (-want +got):\n%s", diff)
		}
		if err := p.Del(ctx, keys...); err != nil {
			t.Fatalf("Del: %v", err)
		}
		if mr.Exists("c:1") || !mr.Exists("d:1") {
			t.Fatalf("wrong keys deleted: %v", mr.Keys())
		}

		v, err := p.Eval(ctx, `return redis.call('GET', KEYS[1]) == ARGV[1] and 1 or 0`, [][]byte{[]byte("d:1")}, "z")
		if err != nil {
			t.Fatalf("Eval: %v", err)
		}
		if n, ok := v.(int64); !ok || n != 1 {
			t.Fatalf("Eval = %#v", v)
		}
	})
}

func strs(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
