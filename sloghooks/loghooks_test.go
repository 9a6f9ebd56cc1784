package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBuffered(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestKeysAreRedacted(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.StoreFailure("get", "user@secret", errors.New("timeout"))

	out := buf.String()
	if strings.Contains(out, "user@secret") {
		t.Fatalf("raw key leaked: %s", out)
	}
	if !strings.Contains(out, "querycache.store_failure") || !strings.Contains(out, "op=get") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestCustomRedactor(t *testing.T) {
	h, buf := newBuffered(Options{Redact: func(string) string { return "REDACTED" }})
	h.LockWaitTimeout("lock:user@1", 2*time.Second)
	if !strings.Contains(buf.String(), "key=REDACTED") {
		t.Fatalf("custom redactor not used: %s", buf.String())
	}
}

func TestSampling(t *testing.T) {
	h, buf := newBuffered(Options{HitEvery: 3})
	for i := 0; i < 9; i++ {
		h.CacheHit("k")
	}
	if n := strings.Count(buf.String(), "querycache.hit"); n != 3 {
		t.Fatalf("sampled hits=%d want 3", n)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.CacheHit("k")
	h.CacheMiss("k")
	h.Coalesced("k")
	h.StoreFailure("set", "k", errors.New("x"))
	h.LockAcquired("k")
	h.LockContended("k")
	h.LockWaitTimeout("k", time.Second)
	h.LockFailure("release", "k", errors.New("x"))
	h.Invalidated(2)
}
