// Package provider defines the byte store querycache reads and writes.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. querycache frames every value it
// writes; bytes it did not write are treated as corruption and deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// IO/remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL; ttl <= 0 means no expiry.
	// cost may be ignored. ok=false reports a write rejected under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}

// BatchDeleter is implemented by providers that can drop many keys in one
// round-trip. Without it querycache falls back to concurrent Del calls.
type BatchDeleter interface {
	DelMany(ctx context.Context, keys ...string) error
}
