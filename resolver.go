package dcache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/dcache/op"
)

// ResolveContext is what a CacheResolver sees for one operation.
type ResolveContext struct {
	Operation *op.Operation
	Target    any
	Method    op.Method
	Args      []any
}

// CacheResolver maps an operation to the caches it targets. An empty result
// is a configuration error.
type CacheResolver interface {
	ResolveCaches(ctx context.Context, rc ResolveContext) ([]Cache, error)
}

// SimpleResolver looks the operation's cache names up in one manager.
type SimpleResolver struct {
	Manager CacheManager
}

func (r SimpleResolver) ResolveCaches(_ context.Context, rc ResolveContext) ([]Cache, error) {
	return lookupCaches(r.Manager, rc.Operation, rc.Operation.CacheNames)
}

// NamesResolver computes cache names per invocation, e.g. from arguments.
type NamesResolver struct {
	Manager CacheManager
	Names   func(rc ResolveContext) []string
}

func (r NamesResolver) ResolveCaches(_ context.Context, rc ResolveContext) ([]Cache, error) {
	return lookupCaches(r.Manager, rc.Operation, r.Names(rc))
}

func lookupCaches(m CacheManager, o *op.Operation, names []string) ([]Cache, error) {
	if m == nil {
		return nil, configErrorf(o, "no cache manager configured")
	}
	if len(names) == 0 {
		return nil, configErrorf(o, "no cache could be resolved; at least one cache name is required")
	}
	caches := make([]Cache, 0, len(names))
	for _, n := range names {
		c, ok := m.Cache(n)
		if !ok || c == nil {
			return nil, &op.ConfigError{Op: o.String(), Msg: fmt.Sprintf("cannot find cache named %q: %v", n, ErrNoCache)}
		}
		caches = append(caches, c)
	}
	return caches, nil
}
