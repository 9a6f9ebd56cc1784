package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery       uint64
	MissEvery      uint64
	ContendedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr       atomic.Uint64
	missCtr      atomic.Uint64
	contendedCtr atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheHit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("querycache.hit", "key", h.redact(key))
}

func (h *Hooks) CacheMiss(key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("querycache.miss", "key", h.redact(key))
}

func (h *Hooks) Coalesced(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.coalesced", "key", h.redact(key))
}

func (h *Hooks) StoreFailure(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.store_failure",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) LockAcquired(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.lock_acquired", "key", h.redact(key))
}

func (h *Hooks) LockContended(key string) {
	if h.l == nil || !sample(h.opts.ContendedEvery, &h.contendedCtr) {
		return
	}
	h.l.Info("querycache.lock_contended", "key", h.redact(key))
}

func (h *Hooks) LockWaitTimeout(key string, waited time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.lock_wait_timeout",
		"key", h.redact(key),
		"waited", waited)
}

func (h *Hooks) LockFailure(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("querycache.lock_failure",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) Invalidated(keys int) {
	if h.l == nil {
		return
	}
	h.l.Debug("querycache.invalidated", "keys", keys)
}
