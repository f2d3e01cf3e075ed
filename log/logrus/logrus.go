// Package logrus adapts logrus to dcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/dcache"
)

var _ dcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with component=dcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "dcache")}
}

func (l Logger) Debug(msg string, f dcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f dcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f dcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f dcache.Fields) { l.with(f).Error(msg) }

// with maps the "err" field onto logrus.ErrorKey.
func (l Logger) with(f dcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if k == "err" {
			k = logrus.ErrorKey
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
