package querycache

import "time"

const (
	defaultLockPrefix  = "prisma-cache-lock"
	defaultLockTTL     = 5 * time.Second
	defaultLockWait    = 2 * time.Second
	defaultRetryDelay  = 40 * time.Millisecond
	defaultRetryJitter = 20 * time.Millisecond

	// concurrent single-key deletes when the provider has no batch delete
	deleteParallelism = 8
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
