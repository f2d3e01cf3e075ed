package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/dcache"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("d", nil)
	l.Info("i", dcache.Fields{"cache": "users"})
	l.Warn("w", dcache.Fields{"err": errors.New("down"), "cache": "users"})
	l.Error("e", nil)

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("entries=%d", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level=%v", i, e.Level)
		}
		if e.LoggerName != "dcache" {
			t.Fatalf("logger name=%q", e.LoggerName)
		}
	}
	ctx := entries[2].ContextMap()
	if ctx["cache"] != "users" || ctx["err"] != "down" {
		t.Fatalf("fields=%v", ctx)
	}
	if entries[2].Context[0].Key != "cache" {
		t.Fatalf("fields not ordered: %v", entries[2].Context)
	}
}

func TestNilLogger(t *testing.T) {
	New(nil).Info("ignored", dcache.Fields{"k": 1})
}
