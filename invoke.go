package dcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/dcache/op"
)

func storeError(opName string, c Cache, key any, err error) error {
	var se *StoreAccessError
	if errors.As(err, &se) {
		return err
	}
	return &StoreAccessError{Op: opName, Cache: c.Name(), Key: key, Err: err}
}

func (e *Executor) generateKey(oc *opContext, r result) (any, error) {
	var key any
	if oc.op.Key != "" {
		k, err := e.eval.Key(oc.op.Key, oc.exprContext(r))
		if err != nil {
			return nil, fmt.Errorf("dcache: key of %s: %w", oc.op.Name, err)
		}
		key = k
	} else {
		key = oc.meta.keyGen.Generate(oc.target, oc.method, oc.args)
	}
	if IsNil(key) {
		return nil, configErrorf(oc.op, "null key returned for cache operation")
	}
	e.log.Debug("computed cache key", Fields{"key": key, "op": oc.op.Name})
	return key, nil
}

// generateHashKey renders the hash field. With both a hashKey expression and
// a hashKeyGenerator the two are joined by "_". With neither, the default
// hash-key generator runs.
func (e *Executor) generateHashKey(oc *opContext, r result) (any, error) {
	var (
		fromExpr any
		fromGen  any
	)
	if oc.op.HashKey != "" {
		v, err := e.eval.Key(oc.op.HashKey, oc.exprContext(r))
		if err != nil {
			return nil, fmt.Errorf("dcache: hashKey of %s: %w", oc.op.Name, err)
		}
		if IsNil(v) {
			return nil, configErrorf(oc.op, "null hash key returned for cache operation")
		}
		fromExpr = v
	}
	if oc.op.HashKeyGenerator != "" || oc.op.HashKey == "" {
		v := oc.meta.hashKeyGen.Generate(oc.target, oc.method, oc.args)
		if IsNil(v) {
			return nil, configErrorf(oc.op, "null hash key returned for cache operation")
		}
		fromGen = v
	}

	var field any
	switch {
	case fromExpr == nil:
		field = fromGen
	case fromGen == nil:
		field = fromExpr
	default:
		a, b := fmt.Sprint(fromExpr), fmt.Sprint(fromGen)
		switch {
		case a == "":
			field = b
		case b == "":
			field = a
		default:
			field = a + "_" + b
		}
	}
	if s, ok := field.(string); ok && s == "" {
		return nil, configErrorf(oc.op, "empty hash key returned for cache operation")
	}
	e.log.Debug("computed cache hash key", Fields{"hashKey": field, "op": oc.op.Name})
	return field, nil
}

// doGet reads one entry. A swallowed error is a miss.
func (e *Executor) doGet(ctx context.Context, c Cache, kind op.DataKind, key, field any) (Value, bool, error) {
	var (
		v   Value
		ok  bool
		err error
	)
	if kind == op.Hash {
		v, ok, err = c.HGet(ctx, key, field)
	} else {
		v, ok, err = c.Get(ctx, key)
	}
	if err != nil {
		if herr := e.handler.OnGetError(storeError("get", c, key, err), c, key); herr != nil {
			return Value{}, false, herr
		}
		return Value{}, false, nil
	}
	return v, ok, nil
}

// doPut writes a staged request. Hash writes go through OnPutError as well.
func (e *Executor) doPut(ctx context.Context, c Cache, p putRequest, value any) error {
	var err error
	if p.oc.op.DataKind == op.Hash {
		err = c.HSet(ctx, p.key, p.field, value, p.oc.op.TTL)
	} else {
		err = c.Put(ctx, p.key, value, p.oc.op.TTL)
	}
	if err != nil {
		return e.handler.OnPutError(storeError("put", c, p.key, err), c, p.key, value)
	}
	return nil
}

func (e *Executor) doEvict(ctx context.Context, c Cache, oc *opContext, key any, r result) error {
	var err error
	if oc.op.DataKind == op.Hash {
		field, ferr := e.generateHashKey(oc, r)
		if ferr != nil {
			return ferr
		}
		err = c.HEvict(ctx, key, field)
	} else {
		err = c.Evict(ctx, key)
	}
	if err != nil {
		return e.handler.OnEvictError(storeError("evict", c, key, err), c, key)
	}
	return nil
}

// doClear clears c. A clear skipped because the cache lock is held is
// reported, not failed.
func (e *Executor) doClear(ctx context.Context, c Cache) error {
	err := c.Clear(ctx)
	if errors.Is(err, ErrClearSkipped) {
		e.log.Warn("cache clear skipped, lock held", Fields{"cache": c.Name()})
		e.hooks.ClearSkipped(c.Name())
		return nil
	}
	if err != nil {
		return e.handler.OnClearError(storeError("clear", c, nil, err), c)
	}
	return nil
}
