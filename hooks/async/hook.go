// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/querycache"
//	"github.com/unkn0wn-root/querycache/codec"
//	asynchook "github.com/unkn0wn-root/querycache/hooks/async"
//	"github.com/unkn0wn-root/querycache/lock"
//	"github.com/unkn0wn-root/querycache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    HitEvery:  100, // sample logs: ~every 100th hit
//	    MissEvery: 10,
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	users, _ := querycache.New[[]User](querycache.Options[[]User]{
//	    KeyPrefix: "app:prod",
//	    Provider:  provider,
//	    Codec:     codec.JSON[[]User]{},
//	    Locker:    lock.NewRedis(rdb),
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/querycache"
)

type Hooks struct {
	inner   querycache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(inner querycache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped is the number of events discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheHit(k string)     { h.try(func() { h.inner.CacheHit(k) }) }
func (h *Hooks) CacheMiss(k string)    { h.try(func() { h.inner.CacheMiss(k) }) }
func (h *Hooks) Coalesced(k string)    { h.try(func() { h.inner.Coalesced(k) }) }
func (h *Hooks) LockAcquired(k string) { h.try(func() { h.inner.LockAcquired(k) }) }
func (h *Hooks) Invalidated(n int)     { h.try(func() { h.inner.Invalidated(n) }) }
func (h *Hooks) LockContended(k string) {
	h.try(func() { h.inner.LockContended(k) })
}
func (h *Hooks) StoreFailure(op, k string, err error) {
	h.try(func() { h.inner.StoreFailure(op, k, err) })
}
func (h *Hooks) LockWaitTimeout(k string, waited time.Duration) {
	h.try(func() { h.inner.LockWaitTimeout(k, waited) })
}
func (h *Hooks) LockFailure(op, k string, err error) {
	h.try(func() { h.inner.LockFailure(op, k, err) })
}
