package dcache

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/dcache/expr"
	"github.com/unkn0wn-root/dcache/op"
)

// call is one invocation plus the hooks that translate between the caller's
// static type and the values the executor handles.
type call struct {
	inv    Invocation
	invoke func(ctx context.Context) (any, error)
	// decode turns a non-null hit into the caller's type.
	decode func(v Value) (any, error)
}

func (e *Executor) execute(ctx context.Context, c call) (any, error) {
	ops, err := e.source.Operations(c.inv.Method, reflect.TypeOf(c.inv.Target))
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return c.invoke(ctx)
	}
	// sources other than op.Resolution may hand back unchecked lists
	if err := op.Validate(ops); err != nil {
		return nil, err
	}

	args := c.inv.args()
	var cs contexts
	for i := range ops {
		oc, err := e.newContext(ctx, &ops[i], c.inv, args)
		if err != nil {
			return nil, err
		}
		switch oc.op.Kind {
		case op.Cacheable:
			cs.cacheables = append(cs.cacheables, oc)
		case op.Put:
			cs.puts = append(cs.puts, oc)
		case op.Evict:
			cs.evicts = append(cs.evicts, oc)
		}
	}

	if sc := cs.sync(); sc != nil {
		return e.executeSync(ctx, sc, c)
	}
	return e.executeGeneral(ctx, &cs, c)
}

func (e *Executor) executeSync(ctx context.Context, oc *opContext, c call) (any, error) {
	if len(oc.caches) > 1 {
		return nil, configErrorf(oc.op, "sync=true only allows a single cache, got %v", oc.names)
	}
	pass, err := e.conditionPassing(oc, noResult)
	if err != nil {
		return nil, err
	}
	if !pass {
		return c.invoke(ctx)
	}
	key, err := e.generateKey(oc, noResult)
	if err != nil {
		return nil, err
	}
	cache := oc.caches[0]

	load := func(ctx context.Context) (any, error) {
		v, err := c.invoke(ctx)
		if err != nil {
			return nil, &invokeError{err: err}
		}
		return v, nil
	}

	var v Value
	if oc.op.DataKind == op.Hash {
		field, ferr := e.generateHashKey(oc, noResult)
		if ferr != nil {
			return nil, ferr
		}
		v, err = cache.HGetOrCompute(ctx, key, field, oc.op.TTL, load)
	} else {
		v, err = cache.GetOrCompute(ctx, key, oc.op.TTL, load)
	}
	if err != nil {
		if cerr, ok := computation(err); ok {
			return nil, cerr
		}
		var we *WriteError
		if errors.As(err, &we) {
			// computed once already; never run it again
			if herr := e.handler.OnPutError(storeError("put", cache, key, we.Err), cache, key, we.Value); herr != nil {
				return nil, herr
			}
			return hitObject(NewValue(we.Value), c)
		}
		if herr := e.handler.OnGetError(storeError("get", cache, key, err), cache, key); herr != nil {
			return nil, herr
		}
		// swallowed: serve the call uncached
		return c.invoke(ctx)
	}
	return hitObject(v, c)
}

func (e *Executor) executeGeneral(ctx context.Context, cs *contexts, c call) (any, error) {
	if err := e.processEvicts(ctx, cs.evicts, true, noResult); err != nil {
		return nil, err
	}

	hit, found, err := e.findCachedItem(ctx, cs.cacheables, c)
	if err != nil {
		return nil, err
	}

	var puts []putRequest
	if !found {
		if puts, err = e.collectPuts(cs.cacheables, noResult, puts); err != nil {
			return nil, err
		}
	}

	var value any
	invoke := !found || len(puts) > 0
	if !invoke {
		if invoke, err = e.hasCachePut(cs.puts); err != nil {
			return nil, err
		}
	}
	if invoke {
		if value, err = c.invoke(ctx); err != nil {
			return nil, err
		}
	} else {
		value = hit
	}
	res := result{val: value, has: true}

	if puts, err = e.collectPuts(cs.puts, res, puts); err != nil {
		return nil, err
	}
	for _, p := range puts {
		if err := e.applyPut(ctx, p, res); err != nil {
			return nil, err
		}
	}

	if err := e.processEvicts(ctx, cs.evicts, false, res); err != nil {
		return nil, err
	}
	return value, nil
}

// findCachedItem returns the first hit of the first condition-passing
// cacheable operations, in declaration order.
func (e *Executor) findCachedItem(ctx context.Context, cacheables []*opContext, c call) (any, bool, error) {
	for _, oc := range cacheables {
		pass, err := e.conditionPassing(oc, noResult)
		if err != nil {
			return nil, false, err
		}
		if !pass {
			continue
		}
		key, err := e.generateKey(oc, noResult)
		if err != nil {
			return nil, false, err
		}
		var field any
		if oc.op.DataKind == op.Hash {
			if field, err = e.generateHashKey(oc, noResult); err != nil {
				return nil, false, err
			}
		}
		for _, cache := range oc.caches {
			v, ok, err := e.doGet(ctx, cache, oc.op.DataKind, key, field)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				continue
			}
			obj, err := hitObject(v, c)
			if err != nil {
				// undecodable entries count as store failures
				if herr := e.handler.OnGetError(storeError("get", cache, key, err), cache, key); herr != nil {
					return nil, false, herr
				}
				continue
			}
			e.log.Debug("cache entry found", Fields{"key": key, "cache": cache.Name()})
			return obj, true, nil
		}
		e.log.Debug("no cache entry", Fields{"key": key, "caches": oc.names})
	}
	return nil, false, nil
}

func hitObject(v Value, c call) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	return c.decode(v)
}

// hasCachePut reports whether any put operation may still apply. Conditions
// are evaluated without the result; one that needs it counts as passing.
func (e *Executor) hasCachePut(puts []*opContext) (bool, error) {
	for _, oc := range puts {
		pass, err := e.conditionPassing(oc, noResult)
		if errors.Is(err, expr.ErrResultUnavailable) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if pass {
			return true, nil
		}
	}
	return false, nil
}

type putRequest struct {
	oc    *opContext
	key   any
	field any
}

func (e *Executor) collectPuts(ocs []*opContext, r result, puts []putRequest) ([]putRequest, error) {
	for _, oc := range ocs {
		pass, err := e.conditionPassing(oc, r)
		if err != nil {
			return nil, err
		}
		if !pass {
			continue
		}
		key, err := e.generateKey(oc, r)
		if err != nil {
			return nil, err
		}
		p := putRequest{oc: oc, key: key}
		if oc.op.DataKind == op.Hash {
			if p.field, err = e.generateHashKey(oc, r); err != nil {
				return nil, err
			}
		}
		puts = append(puts, p)
	}
	return puts, nil
}

func (e *Executor) applyPut(ctx context.Context, p putRequest, r result) error {
	if p.oc.op.Unless != "" {
		skip, err := e.eval.Unless(p.oc.op.Unless, p.oc.exprContext(r))
		if err != nil {
			return fmt.Errorf("dcache: unless of %s: %w", p.oc.op.Name, err)
		}
		if skip {
			return nil
		}
	}
	for _, cache := range p.oc.caches {
		if err := e.doPut(ctx, cache, p, r.val); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) processEvicts(ctx context.Context, evicts []*opContext, before bool, r result) error {
	for _, oc := range evicts {
		if oc.op.BeforeInvocation != before {
			continue
		}
		pass, err := e.conditionPassing(oc, r)
		if err != nil {
			return err
		}
		if pass {
			if err := e.performEvict(ctx, oc, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) performEvict(ctx context.Context, oc *opContext, r result) error {
	var key any
	for _, cache := range oc.caches {
		if oc.op.CacheWide {
			e.log.Debug("invalidating entire cache", Fields{"cache": cache.Name(), "op": oc.op.Name})
			if err := e.doClear(ctx, cache); err != nil {
				return err
			}
			continue
		}
		if key == nil {
			k, err := e.generateKey(oc, r)
			if err != nil {
				return err
			}
			key = k
		}
		e.log.Debug("invalidating cache key", Fields{"cache": cache.Name(), "key": key, "op": oc.op.Name})
		if err := e.doEvict(ctx, cache, oc, key, r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) conditionPassing(oc *opContext, r result) (bool, error) {
	if oc.op.Condition == "" {
		return true, nil
	}
	if oc.cond != nil {
		return *oc.cond, nil
	}
	pass, err := e.eval.Condition(oc.op.Condition, oc.exprContext(r))
	if err != nil {
		return false, fmt.Errorf("dcache: condition of %s: %w", oc.op.Name, err)
	}
	oc.cond = &pass
	if !pass {
		e.log.Debug("cache condition failed", Fields{"op": oc.op.Name})
	}
	return pass, nil
}
