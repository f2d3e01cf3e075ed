// Package zap adapts a *zap.Logger to dcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/dcache"
)

var _ dcache.Logger = Logger{}

// Logger writes dcache events under the "dcache" logger name. Fields are
// emitted in key order so output is stable.
type Logger struct{ L *zap.Logger }

// New names l. A nil l yields a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("dcache")}
}

func (z Logger) Debug(msg string, f dcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f dcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f dcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f dcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f dcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
