package querycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/querycache/internal/keys"
)

// Cache intercepts model operations for one result type V.
// A Cache is safe for concurrent use.
type Cache[V any] struct {
	prefix     string
	defaultTTL time.Duration
	enabled    bool
	classes    classifier

	store    *store[V]
	flight   *flightGroup[V]
	stampede *stampede[V] // nil => process-local single-flight only
	closer   interface{ Close(context.Context) error }

	log   Logger
	hooks Hooks
}

func New[V any](opts Options[V]) (*Cache[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("querycache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("querycache: codec is required")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("querycache: negative default TTL %s", opts.DefaultTTL)
	}
	if err := opts.Lock.validate(); err != nil {
		return nil, err
	}

	// defaults
	var log Logger = NopLogger{}
	if opts.Logger != nil {
		log = opts.Logger
	}
	var hooks Hooks = NopHooks{}
	if opts.Hooks != nil {
		hooks = opts.Hooks
	}

	c := &Cache[V]{
		prefix:     opts.KeyPrefix,
		defaultTTL: opts.DefaultTTL,
		enabled:    !opts.Disabled,
		classes:    newClassifier(opts.ReadOperations, opts.WriteOperations),
		store: &store[V]{
			provider: opts.Provider,
			codec:    opts.Codec,
			log:      log,
			now:      time.Now,
		},
		flight: &flightGroup[V]{hooks: hooks},
		log:    log,
		hooks:  hooks,
	}

	if opts.Locker != nil && !opts.Lock.Disabled {
		c.stampede = &stampede[V]{
			locker: opts.Locker,
			cfg:    opts.Lock.withDefaults(),
			log:    log,
			hooks:  hooks,
			now:    time.Now,
			sleep:  sleepCtx,
		}
		if cl, ok := opts.Locker.(interface{ Close(context.Context) error }); ok {
			c.closer = cl
		}
	}
	return c, nil
}

func (c *Cache[V]) Enabled() bool { return c.enabled }

// Close releases the locker (when it has a Close method) and then the provider.
func (c *Cache[V]) Close(ctx context.Context) error {
	if c.closer != nil {
		_ = c.closer.Close(ctx) // best effort
	}
	return c.store.provider.Close(ctx)
}

// Do runs call through the cache. Query errors are returned unchanged; cache
// and lock failures never are.
func (c *Cache[V]) Do(ctx context.Context, call Call[V]) (V, error) {
	var zero V
	if call.Query == nil {
		return zero, ErrNoQuery
	}

	class := c.classes.classify(call.Operation)
	if !c.enabled || class == OpPassThrough {
		return call.Query(ctx, call.Args)
	}

	dir := ResolveCache[V](call.Cache)
	unc := ResolveUncache[V](call.Uncache)
	if dir.Malformed {
		c.log.Warn("unrecognized cache option; using derived key", Fields{
			"model": call.Model, "op": call.Operation, "option": fmt.Sprintf("%T", call.Cache),
		})
	}

	switch dir.Kind {
	case Disabled:
		return c.execute(ctx, call, unc)
	case ResultDerivedKey:
		return c.executeDerived(ctx, call, dir, unc)
	}

	key, err := c.resolveKey(call, dir)
	if err != nil {
		c.log.Warn("cannot hash arguments; bypassing cache", Fields{
			"model": call.Model, "op": call.Operation, "err": err,
		})
		return c.execute(ctx, call, unc)
	}
	ttl := c.ttl(dir.TTL)

	if class == OpWrite {
		v, err := call.Query(ctx, call.Args)
		if err != nil {
			return zero, err
		}
		c.invalidate(ctx, unc.Keys(v))
		c.put(ctx, key, v, ttl)
		return v, nil
	}
	return c.read(ctx, call, unc, key, ttl)
}

func (c *Cache[V]) read(ctx context.Context, call Call[V], unc UncacheDirective[V], key string, ttl time.Duration) (V, error) {
	if v, ok := c.lookup(ctx, key); ok {
		c.hooks.CacheHit(key)
		c.log.Debug("cache hit", Fields{"key": key})
		return v, nil
	}
	c.hooks.CacheMiss(key)

	return c.flight.do(ctx, key, func(ctx context.Context) (V, error) {
		// the previous flight may have filled key between our lookup and join
		if v, ok := c.lookup(ctx, key); ok {
			return v, nil
		}
		fill := func(ctx context.Context) (V, error) {
			return c.fill(ctx, call, unc, key, ttl)
		}
		if c.stampede != nil {
			return c.stampede.run(ctx, key, func(ctx context.Context) (V, bool) {
				return c.lookup(ctx, key)
			}, fill)
		}
		return fill(ctx)
	})
}

func (c *Cache[V]) fill(ctx context.Context, call Call[V], unc UncacheDirective[V], key string, ttl time.Duration) (V, error) {
	v, err := call.Query(ctx, call.Args)
	if err != nil {
		return v, err
	}
	c.log.Debug("cache fill", Fields{"key": key, "ttl": ttl})
	c.put(ctx, key, v, ttl)
	c.invalidate(ctx, unc.Keys(v))
	return v, nil
}

func (c *Cache[V]) execute(ctx context.Context, call Call[V], unc UncacheDirective[V]) (V, error) {
	v, err := call.Query(ctx, call.Args)
	if err != nil {
		return v, err
	}
	c.invalidate(ctx, unc.Keys(v))
	return v, nil
}

func (c *Cache[V]) executeDerived(ctx context.Context, call Call[V], dir CacheDirective[V], unc UncacheDirective[V]) (V, error) {
	v, err := c.execute(ctx, call, unc)
	if err != nil {
		return v, err
	}
	k := dir.KeyFn(v)
	if k == "" {
		c.log.Debug("derived key empty; not caching", Fields{"model": call.Model, "op": call.Operation})
		return v, nil
	}
	c.put(ctx, c.storageKey(keys.Qualify(dir.Namespace, k)), v, c.ttl(dir.TTL))
	return v, nil
}

// Invalidate deletes the given keys (KeyPrefix applied) and reports every key
// that could not be deleted.
func (c *Cache[V]) Invalidate(ctx context.Context, ks ...string) error {
	sk := c.storageKeys(ks)
	if len(sk) == 0 {
		return nil
	}
	errs := c.store.del(ctx, sk)
	c.hooks.Invalidated(len(sk))
	if len(errs) == 0 {
		return nil
	}
	ie := &InvalidateError{Errs: errs}
	for _, err := range errs {
		c.storeFailure(err)
		var se *StoreError
		if errors.As(err, &se) {
			ie.Keys = append(ie.Keys, se.Key)
		}
	}
	return ie
}

// invalidate is the best-effort form used after a query; it is not cut short
// by the caller's cancellation.
func (c *Cache[V]) invalidate(ctx context.Context, ks []string) {
	sk := c.storageKeys(ks)
	if len(sk) == 0 {
		return
	}
	for _, err := range c.store.del(context.WithoutCancel(ctx), sk) {
		c.storeFailure(err)
	}
	c.hooks.Invalidated(len(sk))
	c.log.Debug("invalidated", Fields{"keys": sk})
}

func (c *Cache[V]) lookup(ctx context.Context, key string) (V, bool) {
	v, ok, err := c.store.get(ctx, key)
	if err != nil {
		c.storeFailure(err)
		return v, false
	}
	return v, ok
}

func (c *Cache[V]) put(ctx context.Context, key string, v V, ttl time.Duration) {
	if err := c.store.set(ctx, key, v, ttl); err != nil {
		c.storeFailure(err)
	}
}

func (c *Cache[V]) storeFailure(err error) {
	var se *StoreError
	if !errors.As(err, &se) {
		c.log.Warn("store failure", Fields{"err": err})
		return
	}
	c.hooks.StoreFailure(se.Op, se.Key, se.Err)
	c.log.Warn("store failure", Fields{"op": se.Op, "key": se.Key, "err": se.Err})
}

func (c *Cache[V]) resolveKey(call Call[V], dir CacheDirective[V]) (string, error) {
	if dir.Kind == ExplicitKey && dir.Key != "" {
		return c.storageKey(keys.Qualify(dir.Namespace, dir.Key)), nil
	}
	k, err := keys.Derived(call.Model, call.Args)
	if err != nil {
		return "", err
	}
	return c.storageKey(keys.Qualify(dir.Namespace, k)), nil
}

func (c *Cache[V]) ttl(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return c.defaultTTL
}

func (c *Cache[V]) storageKey(k string) string {
	return keys.Qualify(c.prefix, k)
}

func (c *Cache[V]) storageKeys(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if k == "" {
			continue
		}
		out = append(out, c.storageKey(k))
	}
	return out
}
