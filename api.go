package querycache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/lock"
	pr "github.com/unkn0wn-root/querycache/provider"
)

// QueryFunc executes the underlying model operation with its arguments.
type QueryFunc[V any] func(ctx context.Context, args any) (V, error)

// Call describes one intercepted model operation.
//
// Cache and Uncache accept the dynamic shapes documented on ResolveCache and
// ResolveUncache, or already-resolved directives.
type Call[V any] struct {
	Model     string // e.g. "user"
	Operation string // e.g. "findUnique", "create"
	Args      any
	Cache     any
	Uncache   any
	Query     QueryFunc[V]
}

// LockConfig tunes cross-process stampede protection.
// Zero fields take the defaults listed on each field.
type LockConfig struct {
	Disabled    bool          // default false (enabled whenever Options.Locker is set)
	Prefix      string        // default "prisma-cache-lock"
	TTL         time.Duration // default 5s
	WaitTimeout time.Duration // default 2s
	RetryDelay  time.Duration // default 40ms
	RetryJitter time.Duration // default 20ms; negative disables jitter
}

// Options configure a Cache. Provider and Codec are required.
type Options[V any] struct {
	Provider pr.Provider
	Codec    c.Codec[V]

	// Locker enables distributed stampede protection. nil => process-local
	// single-flight only.
	Locker lock.Locker
	Lock   LockConfig

	KeyPrefix  string        // prepended as "<prefix>:" to every storage key; default none
	DefaultTTL time.Duration // used when a directive carries no TTL; 0 => no expiry
	Logger     Logger        // nil => NopLogger
	Hooks      Hooks         // nil => NopHooks
	Disabled   bool          // pass every call straight to its query

	// Override the operation classes. nil => DefaultReadOperations /
	// DefaultWriteOperations.
	ReadOperations  []string
	WriteOperations []string
}

// validate rejects negative durations; zero means "use the default".
func (l LockConfig) validate() error {
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"TTL", l.TTL},
		{"WaitTimeout", l.WaitTimeout},
		{"RetryDelay", l.RetryDelay},
	} {
		if d.v < 0 {
			return fmt.Errorf("querycache: negative lock %s %s", d.name, d.v)
		}
	}
	return nil
}

func (l LockConfig) withDefaults() LockConfig {
	l.Prefix = coalesce(l.Prefix, defaultLockPrefix)
	l.TTL = coalesce(l.TTL, defaultLockTTL)
	l.WaitTimeout = coalesce(l.WaitTimeout, defaultLockWait)
	l.RetryDelay = coalesce(l.RetryDelay, defaultRetryDelay)
	l.RetryJitter = coalesce(l.RetryJitter, defaultRetryJitter)
	return l
}
