package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/dcache"
)

func TestEntries(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	down := errors.New("down")
	l.Warn("cache error suppressed", dcache.Fields{"cache": "users", "err": down})
	l.Debug("computed cache key", nil)

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("entries=%d", len(entries))
	}
	w := entries[0]
	if w.Level != logrus.WarnLevel || w.Message != "cache error suppressed" {
		t.Fatalf("entry=%+v", w)
	}
	if w.Data["component"] != "dcache" || w.Data["cache"] != "users" || w.Data[logrus.ErrorKey] != down {
		t.Fatalf("data=%v", w.Data)
	}
	if entries[1].Level != logrus.DebugLevel {
		t.Fatalf("level=%v", entries[1].Level)
	}
}
