package dcache

import (
	"context"
	"database/sql"
)

// Execute runs fn under the cache operations resolved for inv. fn's error is
// returned unchanged; store errors go through the ErrorHandler first.
func Execute[T any](ctx context.Context, e *Executor, inv Invocation, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	r, err := e.execute(ctx, call{
		inv:    inv,
		invoke: func(ctx context.Context) (any, error) { return fn(ctx) },
		decode: decodeAs[T],
	})
	if err != nil || r == nil {
		return zero, err
	}
	return r.(T), nil
}

func decodeAs[T any](v Value) (any, error) {
	var out T
	if err := v.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Adapter maps a wrapper return type W (optional-like) to the value V that
// is actually cached. Unwrap reports absence with ok=false; absent values
// are cached as null.
type Adapter[W, V any] struct {
	Unwrap func(w W) (v V, ok bool)
	Wrap   func(v V, ok bool) W
}

// ExecuteAdapted is Execute for methods returning a wrapper type.
func ExecuteAdapted[W, V any](ctx context.Context, e *Executor, inv Invocation, fn func(context.Context) (W, error), ad Adapter[W, V]) (W, error) {
	var (
		zeroW W
		zeroV V
	)
	r, err := e.execute(ctx, call{
		inv: inv,
		invoke: func(ctx context.Context) (any, error) {
			w, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			v, ok := ad.Unwrap(w)
			if !ok {
				return nil, nil
			}
			return v, nil
		},
		decode: decodeAs[V],
	})
	if err != nil {
		return zeroW, err
	}
	if r == nil {
		return ad.Wrap(zeroV, false), nil
	}
	return ad.Wrap(r.(V), true), nil
}

// NullAdapter adapts sql.Null[T].
func NullAdapter[T any]() Adapter[sql.Null[T], T] {
	return Adapter[sql.Null[T], T]{
		Unwrap: func(w sql.Null[T]) (T, bool) { return w.V, w.Valid },
		Wrap:   func(v T, ok bool) sql.Null[T] { return sql.Null[T]{V: v, Valid: ok} },
	}
}
