package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/querycache"
)

type recorder struct {
	querycache.NopHooks
	mu    sync.Mutex
	hits  []string
	block chan struct{}
}

func (r *recorder) CacheHit(k string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.hits = append(r.hits, k)
	r.mu.Unlock()
}

func TestEventsReachInnerHooks(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)
	for i := 0; i < 5; i++ {
		h.CacheHit("k")
	}
	h.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.hits) != 5 {
		t.Fatalf("hits=%d want 5", len(rec.hits))
	}
}

func TestFullQueueDrops(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	h.CacheHit("a") // picked up by the worker, which blocks
	deadline := time.Now().Add(time.Second)
	for len(h.q) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.CacheHit("b") // queued
	h.CacheHit("c") // dropped

	if got := h.Dropped(); got != 1 {
		t.Fatalf("dropped=%d want 1", got)
	}
	close(rec.block)
	h.Close()
}

func TestAfterCloseIsDropped(t *testing.T) {
	h := New(querycache.NopHooks{}, 1, 4)
	h.Close()
	h.Invalidated(3)
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d want 1", h.Dropped())
	}
}
