package slog

import (
	"bytes"
	"encoding/json"
	"errors"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/querycache"
)

func TestLoggerWritesLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})
	l := New(stdslog.New(h))

	l.Warn("store failure", querycache.Fields{"key": "user@abc", "err": errors.New("boom")})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, buf.String())
	}
	if rec["level"] != "WARN" || rec["msg"] != "store failure" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["component"] != "querycache" || rec["key"] != "user@abc" || rec["err"] != "boom" {
		t.Fatalf("missing fields: %v", rec)
	}
}

func TestLoggerRespectsHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelInfo}))}
	l.Debug("cache hit", nil)
	if buf.Len() != 0 {
		t.Fatalf("debug record should be filtered, got %q", buf.String())
	}
	l.Error("x", nil)
	if buf.Len() == 0 {
		t.Fatalf("error record missing")
	}
}
