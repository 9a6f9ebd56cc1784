package zap

import (
	"errors"
	"testing"

	"github.com/unkn0wn-root/querycache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))

	l.Debug("cache hit", querycache.Fields{"key": "user@1"})
	l.Warn("lock release failed", querycache.Fields{"err": errors.New("conn reset")})

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	if entries[0].LoggerName != "querycache" {
		t.Fatalf("logger name=%q", entries[0].LoggerName)
	}
	if got := entries[0].ContextMap()["key"]; got != "user@1" {
		t.Fatalf("key field=%v", got)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Fatalf("level=%v", entries[1].Level)
	}
	if got := entries[1].ContextMap()["err"]; got != "conn reset" {
		t.Fatalf("err field=%v", got)
	}
}
