// Package lock provides the atomic primitives querycache uses to elect one
// recomputing process per cache key.
//
// A lock is a key holding a caller-chosen token with an expiry. Acquisition is
// set-if-absent; release deletes the key only while it still holds the
// caller's token, so a holder whose lock expired cannot release a lock that
// someone else acquired afterwards.
package lock

import (
	"context"
	"time"
)

// Locker abstracts where lock records live.
// Use Local for a single process, Redis or Valkey for multiple replicas.
type Locker interface {
	// TryLock atomically sets key=token with the given ttl if key is absent.
	// It reports whether the lock was acquired.
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Unlock deletes key only if it still holds token.
	Unlock(ctx context.Context, key, token string) error
}

// unlockScript is shared by the Redis and Valkey backends.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`
