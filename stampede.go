package querycache

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/unkn0wn-root/querycache/lock"
)

// stampede elects one filler per key across processes. The holder fills;
// everyone else polls the cache until the entry shows up or the wait budget
// runs out, and then fills on its own.
type stampede[V any] struct {
	locker lock.Locker
	cfg    LockConfig
	log    Logger
	hooks  Hooks
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func (s *stampede[V]) lockKey(key string) string {
	return s.cfg.Prefix + ":" + key
}

// run is entered after a confirmed miss. lookup rechecks the cache; fill
// executes the query and writes the entry.
func (s *stampede[V]) run(
	ctx context.Context,
	key string,
	lookup func(context.Context) (V, bool),
	fill func(context.Context) (V, error),
) (V, error) {
	lk := s.lockKey(key)
	token := uuid.NewString()
	acquired, err := s.locker.TryLock(ctx, lk, token, s.cfg.TTL)
	if err != nil {
		s.hooks.LockFailure("acquire", lk, err)
		s.log.Warn("lock acquire failed; waiting instead", Fields{"key": lk, "err": err})
		acquired = false
	}

	if acquired {
		s.hooks.LockAcquired(lk)
		defer s.release(ctx, lk, token)
		if v, ok := lookup(ctx); ok {
			return v, nil
		}
		return fill(ctx)
	}

	if err == nil {
		s.hooks.LockContended(lk)
	}
	return s.wait(ctx, key, lookup, fill)
}

func (s *stampede[V]) wait(
	ctx context.Context,
	key string,
	lookup func(context.Context) (V, bool),
	fill func(context.Context) (V, error),
) (V, error) {
	start := s.now()
	deadline := start.Add(s.cfg.WaitTimeout)
	for {
		if err := s.sleep(ctx, s.backoff()); err != nil {
			var zero V
			return zero, err
		}
		if v, ok := lookup(ctx); ok {
			return v, nil
		}
		if !s.now().Before(deadline) {
			break
		}
	}

	waited := s.now().Sub(start)
	s.hooks.LockWaitTimeout(s.lockKey(key), waited)
	s.log.Debug("lock wait timed out; filling directly", Fields{"key": key, "waited": waited})
	return fill(ctx)
}

func (s *stampede[V]) backoff() time.Duration {
	d := s.cfg.RetryDelay
	if j := s.cfg.RetryJitter; j > 0 {
		d += rand.N(j + 1)
	}
	return d
}

// release runs even when ctx is already done; a failed release leaves the lock
// to expire.
func (s *stampede[V]) release(ctx context.Context, lk, token string) {
	if err := s.locker.Unlock(context.WithoutCancel(ctx), lk, token); err != nil {
		s.hooks.LockFailure("release", lk, err)
		s.log.Warn("lock release failed", Fields{"key": lk, "err": err})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
