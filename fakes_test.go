package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memProvider is an in-memory Provider with injectable failures.
type memProvider struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration

	gets, sets, dels int
	getErr           error
	setErr           error
	delErr           map[string]error // per key; "*" matches all
	rejectSets       bool
	closed           bool

	onGet func(key string)
}

func newMemProvider() *memProvider {
	return &memProvider{
		data:   make(map[string][]byte),
		ttls:   make(map[string]time.Duration),
		delErr: make(map[string]error),
	}
}

func (m *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	m.gets++
	hook := m.onGet
	if m.getErr != nil {
		err := m.getErr
		m.mu.Unlock()
		return nil, false, err
	}
	b, ok := m.data[key]
	m.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return b, ok, nil
}

func (m *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return false, m.setErr
	}
	if m.rejectSets {
		return false, nil
	}
	m.data[key] = append([]byte(nil), value...)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memProvider) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dels++
	if err, ok := m.delErr[key]; ok {
		return err
	}
	if err, ok := m.delErr["*"]; ok {
		return err
	}
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *memProvider) Close(context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *memProvider) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memProvider) ttl(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

func (m *memProvider) put(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}

func (m *memProvider) counts() (gets, sets, dels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.sets, m.dels
}

// batchProvider adds DelMany on top of memProvider.
type batchProvider struct {
	*memProvider
	batches [][]string
}

func (b *batchProvider) DelMany(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	b.batches = append(b.batches, append([]string(nil), keys...))
	b.mu.Unlock()
	for _, k := range keys {
		if err := b.Del(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// recHooks counts events by name.
type recHooks struct {
	mu     sync.Mutex
	events map[string]int
	keys   map[string][]string

	onContended func(key string)
}

func newRecHooks() *recHooks {
	return &recHooks{events: make(map[string]int), keys: make(map[string][]string)}
}

func (h *recHooks) add(ev, key string) {
	h.mu.Lock()
	h.events[ev]++
	h.keys[ev] = append(h.keys[ev], key)
	h.mu.Unlock()
}

func (h *recHooks) count(ev string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events[ev]
}

func (h *recHooks) keysFor(ev string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.keys[ev]...)
}

func (h *recHooks) CacheHit(k string)                  { h.add("hit", k) }
func (h *recHooks) CacheMiss(k string)                 { h.add("miss", k) }
func (h *recHooks) Coalesced(k string)                 { h.add("coalesced", k) }
func (h *recHooks) StoreFailure(op, k string, _ error) { h.add("store_"+op, k) }
func (h *recHooks) LockAcquired(k string)              { h.add("lock_acquired", k) }
func (h *recHooks) LockWaitTimeout(k string, _ time.Duration) {
	h.add("lock_wait_timeout", k)
}
func (h *recHooks) LockFailure(op, k string, _ error) { h.add("lock_"+op+"_failure", k) }
func (h *recHooks) Invalidated(n int)                 { h.add("invalidated", fmt.Sprint(n)) }
func (h *recHooks) LockContended(k string) {
	h.add("lock_contended", k)
	if h.onContended != nil {
		h.onContended(k)
	}
}

// recLogger keeps every record.
type recLogger struct {
	mu   sync.Mutex
	recs []logRec
}

type logRec struct {
	level, msg string
	f          Fields
}

func (l *recLogger) log(level, msg string, f Fields) {
	l.mu.Lock()
	l.recs = append(l.recs, logRec{level, msg, f})
	l.mu.Unlock()
}

func (l *recLogger) Debug(msg string, f Fields) { l.log("debug", msg, f) }
func (l *recLogger) Info(msg string, f Fields)  { l.log("info", msg, f) }
func (l *recLogger) Warn(msg string, f Fields)  { l.log("warn", msg, f) }
func (l *recLogger) Error(msg string, f Fields) { l.log("error", msg, f) }

func (l *recLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.recs {
		if r.level == level {
			n++
		}
	}
	return n
}
