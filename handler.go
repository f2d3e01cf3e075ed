package dcache

// ErrorHandler decides what happens to store errors. Returning nil swallows
// the error: a get becomes a miss, anything else a no-op. Returning an error
// aborts the invocation with it.
type ErrorHandler interface {
	OnGetError(err error, cache Cache, key any) error
	OnPutError(err error, cache Cache, key, value any) error
	OnEvictError(err error, cache Cache, key any) error
	OnClearError(err error, cache Cache) error
}

// RethrowHandler returns every error. It is the default.
type RethrowHandler struct{}

func (RethrowHandler) OnGetError(err error, _ Cache, _ any) error    { return err }
func (RethrowHandler) OnPutError(err error, _ Cache, _, _ any) error { return err }
func (RethrowHandler) OnEvictError(err error, _ Cache, _ any) error  { return err }
func (RethrowHandler) OnClearError(err error, _ Cache) error         { return err }

// LoggingHandler swallows store errors after logging them at Warn.
type LoggingHandler struct {
	Logger Logger
	Hooks  Hooks
}

func (h LoggingHandler) suppress(op string, err error, cache Cache, key any) error {
	f := Fields{"op": op, "cache": cache.Name(), "err": err}
	if key != nil {
		f["key"] = key
	}
	coalesce[Logger](h.Logger, NopLogger{}).Warn("cache error suppressed", f)
	coalesce[Hooks](h.Hooks, NopHooks{}).StoreErrorSuppressed(op, cache.Name(), err)
	return nil
}

func (h LoggingHandler) OnGetError(err error, c Cache, key any) error {
	return h.suppress("get", err, c, key)
}

func (h LoggingHandler) OnPutError(err error, c Cache, key, _ any) error {
	return h.suppress("put", err, c, key)
}

func (h LoggingHandler) OnEvictError(err error, c Cache, key any) error {
	return h.suppress("evict", err, c, key)
}

func (h LoggingHandler) OnClearError(err error, c Cache) error {
	return h.suppress("clear", err, c, nil)
}
