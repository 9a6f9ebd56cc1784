package querycache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/internal/wire"
	pr "github.com/unkn0wn-root/querycache/provider"
	"golang.org/x/sync/errgroup"
)

// store frames codec output and talks to the provider. Failures come back as
// *StoreError; the caller decides whether to recover.
type store[V any] struct {
	provider pr.Provider
	codec    c.Codec[V]
	log      Logger
	now      func() time.Time
}

// get reports ok=true only for a well-formed entry. Foreign or undecodable
// bytes are deleted and reported as a miss.
func (s *store[V]) get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		return zero, false, &StoreError{Op: OpGet, Key: key, Err: err}
	}
	if !ok {
		return zero, false, nil
	}
	_, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		s.heal(ctx, key, err)
		return zero, false, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		s.heal(ctx, key, err)
		return zero, false, nil
	}
	return v, true, nil
}

func (s *store[V]) heal(ctx context.Context, key string, cause error) {
	s.log.Warn("dropping unreadable entry", Fields{"key": key, "err": cause})
	_ = s.provider.Del(ctx, key)
}

func (s *store[V]) set(ctx context.Context, key string, v V, ttl time.Duration) error {
	payload, err := s.codec.Encode(v)
	if err != nil {
		return &StoreError{Op: OpSet, Key: key, Err: err}
	}
	b := wire.EncodeEntry(s.now(), payload)
	ok, err := s.provider.Set(ctx, key, b, int64(len(b)), ttl)
	if err != nil {
		return &StoreError{Op: OpSet, Key: key, Err: err}
	}
	if !ok {
		s.log.Debug("set rejected by provider (pressure)", Fields{"key": key})
	}
	return nil
}

// del removes keys and returns one *StoreError per key that failed.
func (s *store[V]) del(ctx context.Context, keys []string) []error {
	switch len(keys) {
	case 0:
		return nil
	case 1:
		if err := s.provider.Del(ctx, keys[0]); err != nil {
			return []error{&StoreError{Op: OpDelete, Key: keys[0], Err: err}}
		}
		return nil
	}

	if bd, ok := s.provider.(pr.BatchDeleter); ok {
		if err := bd.DelMany(ctx, keys...); err != nil {
			errs := make([]error, len(keys))
			for i, k := range keys {
				errs[i] = &StoreError{Op: OpDelete, Key: k, Err: err}
			}
			return errs
		}
		return nil
	}

	// per-key results; the group never fails fast
	errs := make([]error, len(keys))
	var g errgroup.Group
	g.SetLimit(deleteParallelism)
	for i, k := range keys {
		g.Go(func() error {
			if err := s.provider.Del(ctx, k); err != nil {
				errs[i] = &StoreError{Op: OpDelete, Key: k, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := errs[:0]
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
