// Package dcache implements declarative caching over a Redis-like store.
// Call sites carry a list of cache operations (Cacheable, Put, Evict); the
// Executor decides per invocation whether to serve a cached value, run the
// computation and store its result, or invalidate entries.
//
// Components:
//   - op.Source: resolves the operations of a (method, target type) pair.
//   - CacheResolver / CacheManager: map cache names to live Cache handles.
//   - expr.Evaluator: condition, key and unless expressions (CEL by default).
//   - keygen.KeyGenerator: keys when no key expression is given.
//   - store: the Redis-backed Cache with its lock and known-keys index.
//
// Order of work on the general path:
//
//	evict (beforeInvocation) -> lookup -> stage cacheable puts on miss
//	-> invoke if miss or put pending -> collect puts -> apply (unless)
//	-> evict (after) -> return
//
// A sync Cacheable instead goes through Cache.GetOrCompute, which computes
// at most once per absent key across processes.
//
// Call site:
//
//	u, err := dcache.Execute(ctx, exec, dcache.Invocation{
//		Target: svc, Method: loadUser, Args: []any{id},
//	}, func(ctx context.Context) (*User, error) { return svc.load(ctx, id) })
package dcache
