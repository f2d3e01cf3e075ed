package dcache

// Fields are structured log attributes.
type Fields map[string]any

// Logger is the leveled logger dcache writes to. Adapters for zap, logrus
// and slog live under log/. A nil Logger in any Options disables logging.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

// WithFields returns a Logger that adds bound to every entry. Per-call
// fields win on conflict.
func WithFields(l Logger, bound Fields) Logger {
	if l == nil {
		return NopLogger{}
	}
	if _, nop := l.(NopLogger); nop || len(bound) == 0 {
		return l
	}
	return boundLogger{l: l, bound: bound}
}

type boundLogger struct {
	l     Logger
	bound Fields
}

func (b boundLogger) merge(f Fields) Fields {
	out := make(Fields, len(b.bound)+len(f))
	for k, v := range b.bound {
		out[k] = v
	}
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (b boundLogger) Debug(msg string, f Fields) { b.l.Debug(msg, b.merge(f)) }
func (b boundLogger) Info(msg string, f Fields)  { b.l.Info(msg, b.merge(f)) }
func (b boundLogger) Warn(msg string, f Fields)  { b.l.Warn(msg, b.merge(f)) }
func (b boundLogger) Error(msg string, f Fields) { b.l.Error(msg, b.merge(f)) }

// coalesce returns def when v is the zero value of T, otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
