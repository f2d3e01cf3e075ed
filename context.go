package dcache

import (
	"context"
	"reflect"

	"github.com/unkn0wn-root/dcache/expr"
	"github.com/unkn0wn-root/dcache/keygen"
	"github.com/unkn0wn-root/dcache/op"
)

// Invocation is one call of a cached method.
type Invocation struct {
	Target any
	Method op.Method
	Args   []any
}

// args flattens a trailing variadic slice into the argument tuple.
func (inv Invocation) args() []any {
	n := len(inv.Args)
	if !inv.Method.Variadic || n == 0 {
		return inv.Args
	}
	last := reflect.ValueOf(inv.Args[n-1])
	if last.Kind() != reflect.Slice {
		return inv.Args
	}
	out := make([]any, 0, n-1+last.Len())
	out = append(out, inv.Args[:n-1]...)
	for i := 0; i < last.Len(); i++ {
		out = append(out, last.Index(i).Interface())
	}
	return out
}

// metaKey identifies the invocation-independent collaborators of an
// operation. Operations sharing the same references share one entry.
type metaKey struct {
	keyGen, hashKeyGen, manager, resolver string
}

type metadata struct {
	keyGen     keygen.KeyGenerator
	hashKeyGen keygen.KeyGenerator
	resolver   CacheResolver
}

func (e *Executor) metadata(o *op.Operation) (*metadata, error) {
	k := metaKey{keyGen: o.KeyGenerator, hashKeyGen: o.HashKeyGenerator, manager: o.CacheManager, resolver: o.CacheResolver}
	return e.meta.Do(k, func() (*metadata, error) {
		m := &metadata{keyGen: e.keyGen, hashKeyGen: e.hashKeyGen}
		var err error
		if k.keyGen != "" {
			if m.keyGen, err = e.beans.KeyGenerator(k.keyGen); err != nil {
				return nil, err
			}
		}
		if k.hashKeyGen != "" {
			if m.hashKeyGen, err = e.beans.KeyGenerator(k.hashKeyGen); err != nil {
				return nil, err
			}
		}
		switch {
		case k.resolver != "":
			if m.resolver, err = e.beans.CacheResolver(k.resolver); err != nil {
				return nil, err
			}
		case k.manager != "":
			mgr, err := e.beans.CacheManager(k.manager)
			if err != nil {
				return nil, err
			}
			m.resolver = SimpleResolver{Manager: mgr}
		default:
			if e.resolver == nil {
				return nil, configErrorf(o, "no cache resolver specified and no default cache manager or resolver configured")
			}
			m.resolver = e.resolver
		}
		return m, nil
	})
}

// opContext binds one operation to one invocation. Discarded after the call.
type opContext struct {
	op     *op.Operation
	meta   *metadata
	target any
	method op.Method
	args   []any
	caches []Cache
	names  []string

	// condition outcome, kept once it evaluated without error
	cond *bool
}

func (e *Executor) newContext(ctx context.Context, o *op.Operation, inv Invocation, args []any) (*opContext, error) {
	meta, err := e.metadata(o)
	if err != nil {
		return nil, err
	}
	caches, err := meta.resolver.ResolveCaches(ctx, ResolveContext{Operation: o, Target: inv.Target, Method: inv.Method, Args: args})
	if err != nil {
		return nil, err
	}
	if len(caches) == 0 {
		return nil, configErrorf(o, "no cache could be resolved; at least one cache is required")
	}
	names := make([]string, len(caches))
	for i, c := range caches {
		names[i] = c.Name()
	}
	return &opContext{
		op:     o,
		meta:   meta,
		target: inv.Target,
		method: inv.Method,
		args:   args,
		caches: caches,
		names:  names,
	}, nil
}

// result is the evaluation root's view of the computation result.
type result struct {
	val any
	has bool
}

var noResult = result{}

func (c *opContext) exprContext(r result) *expr.Context {
	return &expr.Context{
		Target:    c.target,
		Method:    c.method,
		Args:      c.args,
		Caches:    c.names,
		Result:    r.val,
		HasResult: r.has,
	}
}

// contexts groups the operation contexts of one invocation by kind, keeping
// declaration order within each kind.
type contexts struct {
	cacheables []*opContext
	puts       []*opContext
	evicts     []*opContext
}

func (cs *contexts) sync() *opContext {
	if len(cs.cacheables) == 1 && len(cs.puts) == 0 && len(cs.evicts) == 0 && cs.cacheables[0].op.Sync {
		return cs.cacheables[0]
	}
	return nil
}
