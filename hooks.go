package querycache

import "time"

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the call path.
// Keys passed to hooks are storage keys (prefix included).
type Hooks interface {
	// Lookup outcome of a read operation.
	CacheHit(key string)
	CacheMiss(key string)

	// A caller joined an execution already in flight for key.
	Coalesced(key string)

	// A provider call failed and was degraded to a miss or no-op.
	// op ∈ {"get", "set", "delete"}
	StoreFailure(op, key string, err error)

	// Distributed lock state transitions.
	LockAcquired(key string)
	LockContended(key string)
	LockWaitTimeout(key string, waited time.Duration)

	// A lock primitive failed. op ∈ {"acquire", "release"}
	LockFailure(op, key string, err error)

	// Invalidation ran after a query; keys is the number of keys requested.
	Invalidated(keys int)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) CacheHit(string)                       {}
func (NopHooks) CacheMiss(string)                      {}
func (NopHooks) Coalesced(string)                      {}
func (NopHooks) StoreFailure(string, string, error)    {}
func (NopHooks) LockAcquired(string)                   {}
func (NopHooks) LockContended(string)                  {}
func (NopHooks) LockWaitTimeout(string, time.Duration) {}
func (NopHooks) LockFailure(string, string, error)     {}
func (NopHooks) Invalidated(int)                       {}
