package dcache_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/dcache"
	"github.com/unkn0wn-root/dcache/op"
	rp "github.com/unkn0wn-root/dcache/provider/redis"
	"github.com/unkn0wn-root/dcache/store"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type repo struct{ loads int }

func (r *repo) Load(id int) (user, error) {
	r.loads++
	return user{ID: id, Name: fmt.Sprintf("U%d", id)}, nil
}

func (r *repo) Reset() error { return nil }

func newStack(t *testing.T, reg *op.Registry) (*miniredis.Miniredis, *dcache.Executor) {
	t.Helper()
	mr := miniredis.RunT(t)
	p, err := rp.New(rp.Config{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	mgr, err := store.NewManager(store.ManagerOptions{
		ManagerConfig: store.ManagerConfig{UsePrefix: true},
		Provider:      p,
	})
	if err != nil {
		t.Fatal(err)
	}
	src, err := op.NewResolution(reg, op.ResolutionOptions{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(src.Close)

	e, err := dcache.New(dcache.Options{Source: src, CacheManager: mgr})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return mr, e
}

func TestRedisRoundTrip(t *testing.T) {
	r := &repo{}
	rt := op.MethodOf(r, "Load", "id").Type
	reg := op.NewRegistry().Method(rt, "Load", op.Operation{Kind: op.Cacheable, CacheNames: []string{"users"}, Key: "id"})
	mr, e := newStack(t, reg)
	ctx := context.Background()

	load := func(id int) user {
		t.Helper()
		inv := dcache.Invocation{Target: r, Method: op.MethodOf(r, "Load", "id"), Args: []any{id}}
		u, err := dcache.Execute(ctx, e, inv, func(context.Context) (user, error) { return r.Load(id) })
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		return u
	}

	first := load(42)
	second := load(42)
	if first != second || first.ID != 42 {
		t.Fatalf("first=%+v second=%+v", first, second)
	}
	if r.loads != 1 {
		t.Fatalf("loads=%d", r.loads)
	}
	if got, _ := mr.Get("users:42"); got != `{"id":42,"name":"U42"}` {
		t.Fatalf("stored %q", got)
	}
}

func TestRedisCacheWideEvictBeforeInvocation(t *testing.T) {
	r := &repo{}
	rt := op.MethodOf(r, "Reset").Type
	reg := op.NewRegistry().Method(rt, "Reset", op.Operation{Kind: op.Evict, CacheNames: []string{"users"}, CacheWide: true, BeforeInvocation: true})
	mr, e := newStack(t, reg)
	ctx := context.Background()

	if err := mr.Set("users:1", "x"); err != nil {
		t.Fatal(err)
	}
	if err := mr.Set("users:2", "y"); err != nil {
		t.Fatal(err)
	}
	if err := mr.Set("orders:1", "z"); err != nil {
		t.Fatal(err)
	}

	inv := dcache.Invocation{Target: r, Method: op.MethodOf(r, "Reset")}
	_, err := dcache.Execute(ctx, e, inv, func(context.Context) (struct{}, error) {
		if mr.Exists("users:1") {
			t.Errorf("clear did not run before the method")
		}
		return struct{}{}, r.Reset()
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "orders:1" {
		t.Fatalf("keys=%v", keys)
	}
}
