package dcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/dcache/lock"
	"github.com/unkn0wn-root/dcache/op"
)

// ConfigurationError reports a misconfigured call site: conflicting
// attributes, invalid sync use, no caches, a nil key. It is never handed to
// the ErrorHandler.
type ConfigurationError = op.ConfigError

var (
	// ErrLockTimeout is returned when a cache lock stays held past the
	// retry budget.
	ErrLockTimeout = lock.ErrTimeout

	// ErrClearSkipped is returned by Cache.Clear when another caller holds
	// the cache lock. Nothing was deleted.
	ErrClearSkipped = errors.New("dcache: clear skipped, cache lock held")

	// ErrNoCache is wrapped into a ConfigurationError when a name cannot be
	// resolved to a cache.
	ErrNoCache = errors.New("dcache: cache not found")
)

// StoreAccessError is a failure talking to the backing store.
type StoreAccessError struct {
	Op    string // get, put, evict, clear
	Cache string
	Key   any
	Err   error
}

func (e *StoreAccessError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("dcache: %s on cache %q: %v", e.Op, e.Cache, e.Err)
	}
	return fmt.Sprintf("dcache: %s %v on cache %q: %v", e.Op, e.Key, e.Cache, e.Err)
}

func (e *StoreAccessError) Unwrap() error { return e.Err }

// WriteError is returned by GetOrCompute when the value was computed but
// could not be stored. Value is the computed result; callers use it rather
// than computing again.
type WriteError struct {
	Value any
	Err   error
}

func (e *WriteError) Error() string { return "dcache: store computed value: " + e.Err.Error() }
func (e *WriteError) Unwrap() error { return e.Err }

// invokeError carries a failure of the computation through store code paths
// so it is never mistaken for a store error. It is unwrapped before the
// executor returns.
type invokeError struct{ err error }

func (e *invokeError) Error() string { return e.err.Error() }
func (e *invokeError) Unwrap() error { return e.err }

// computation returns the original computation error if err carries one.
func computation(err error) (error, bool) {
	var ie *invokeError
	if errors.As(err, &ie) {
		return ie.err, true
	}
	return nil, false
}

func configErrorf(o *op.Operation, format string, args ...any) error {
	return op.Errorf(o, format, args...)
}
