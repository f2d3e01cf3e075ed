package dcache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Caches and the executor call them on hot paths.
type Hooks interface {
	// A caller waited for a cache lock before reading or writing.
	LockWaited(cache string, waited time.Duration)

	// The cache lock stayed held past the retry budget.
	LockTimeout(cache string)

	// Clear found the cache lock held and did nothing.
	ClearSkipped(cache string)

	// A watched write-through transaction lost to a concurrent writer.
	TxAborted(cache, key string)

	// An ErrorHandler swallowed a store error.
	// op ∈ {"get", "put", "evict", "clear"}
	StoreErrorSuppressed(op, cache string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) LockWaited(string, time.Duration)           {}
func (NopHooks) LockTimeout(string)                         {}
func (NopHooks) ClearSkipped(string)                        {}
func (NopHooks) TxAborted(string, string)                   {}
func (NopHooks) StoreErrorSuppressed(string, string, error) {}
