package querycache

import (
	"math"
	"reflect"
	"time"

	"github.com/unkn0wn-root/querycache/internal/keys"
)

// DirectiveKind selects how a call's cache key and TTL are derived.
type DirectiveKind uint8

const (
	Disabled         DirectiveKind = iota // skip caching
	Enabled                               // key from model + args, default TTL
	EnabledWithTTL                        // key from model + args, fixed TTL
	ExplicitKey                           // caller-provided key (optionally namespaced)
	ResultDerivedKey                      // key computed from the query result
)

func (k DirectiveKind) String() string {
	switch k {
	case Enabled:
		return "enabled"
	case EnabledWithTTL:
		return "enabled_ttl"
	case ExplicitKey:
		return "explicit_key"
	case ResultDerivedKey:
		return "result_key"
	default:
		return "disabled"
	}
}

// CacheDirective is the resolved form of a call's cache option.
// TTL == 0 means "not set" (Options.DefaultTTL applies).
type CacheDirective[V any] struct {
	Kind      DirectiveKind
	Key       string // ExplicitKey only; empty => derived from model + args
	Namespace string
	TTL       time.Duration
	KeyFn     func(V) string // ResultDerivedKey only

	// Malformed is set when the raw option had an unrecognized shape and
	// resolution fell back to Enabled.
	Malformed bool
}

// KeyOptions is the object form of a cache option.
type KeyOptions struct {
	Key       string
	Namespace string
	TTL       time.Duration
}

// DerivedKey caches under a key computed from the query result.
type DerivedKey[V any] struct {
	Key       func(V) string
	Namespace string
	TTL       time.Duration
}

// NamespacedKey names a key to invalidate. Resolves to "namespace:key", or
// key alone when Namespace is empty.
type NamespacedKey struct {
	Key       string
	Namespace string
}

func (k NamespacedKey) String() string { return keys.Qualify(k.Namespace, k.Key) }

// ResolveCache turns a raw cache option into a directive. It never fails:
//
//	nil, false                  -> Disabled
//	true                        -> Enabled
//	int/uint/float (ms)         -> EnabledWithTTL
//	time.Duration               -> EnabledWithTTL
//	string                      -> ExplicitKey
//	KeyOptions                  -> ExplicitKey (empty Key: derived, namespaced)
//	DerivedKey[V], func(V) string -> ResultDerivedKey
//	map[string]any              -> by its "key", "namespace" and "ttl" fields
//	anything else               -> Enabled, Malformed
//
// Non-positive, NaN or infinite TTLs are treated as unset.
func ResolveCache[V any](raw any) CacheDirective[V] {
	switch v := raw.(type) {
	case nil:
		return CacheDirective[V]{Kind: Disabled}
	case CacheDirective[V]:
		return v
	case *CacheDirective[V]:
		if v == nil {
			return CacheDirective[V]{Kind: Disabled}
		}
		return *v
	case bool:
		if v {
			return CacheDirective[V]{Kind: Enabled}
		}
		return CacheDirective[V]{Kind: Disabled}
	case time.Duration:
		return withTTL[V](positive(v))
	case string:
		if v == "" {
			return CacheDirective[V]{Kind: Enabled}
		}
		return CacheDirective[V]{Kind: ExplicitKey, Key: v}
	case KeyOptions:
		return CacheDirective[V]{Kind: ExplicitKey, Key: v.Key, Namespace: v.Namespace, TTL: positive(v.TTL)}
	case *KeyOptions:
		if v == nil {
			return CacheDirective[V]{Kind: Disabled}
		}
		return ResolveCache[V](*v)
	case DerivedKey[V]:
		if v.Key == nil {
			return CacheDirective[V]{Kind: Enabled, Malformed: true}
		}
		return CacheDirective[V]{Kind: ResultDerivedKey, KeyFn: v.Key, Namespace: v.Namespace, TTL: positive(v.TTL)}
	case *DerivedKey[V]:
		if v == nil {
			return CacheDirective[V]{Kind: Disabled}
		}
		return ResolveCache[V](*v)
	case func(V) string:
		if v == nil {
			return CacheDirective[V]{Kind: Enabled, Malformed: true}
		}
		return CacheDirective[V]{Kind: ResultDerivedKey, KeyFn: v}
	case map[string]any:
		return resolveCacheMap[V](v)
	}

	if ms, ok := number(raw); ok {
		return withTTL[V](millis(ms))
	}
	return CacheDirective[V]{Kind: Enabled, Malformed: true}
}

func resolveCacheMap[V any](m map[string]any) CacheDirective[V] {
	ns, _ := m["namespace"].(string)
	ttl := rawTTL(m["ttl"])

	switch k := m["key"].(type) {
	case nil:
		return CacheDirective[V]{Kind: ExplicitKey, Namespace: ns, TTL: ttl}
	case string:
		return CacheDirective[V]{Kind: ExplicitKey, Key: k, Namespace: ns, TTL: ttl}
	case func(V) string:
		if k != nil {
			return CacheDirective[V]{Kind: ResultDerivedKey, KeyFn: k, Namespace: ns, TTL: ttl}
		}
	}
	return CacheDirective[V]{Kind: Enabled, Malformed: true}
}

func withTTL[V any](ttl time.Duration) CacheDirective[V] {
	if ttl <= 0 {
		return CacheDirective[V]{Kind: Enabled}
	}
	return CacheDirective[V]{Kind: EnabledWithTTL, TTL: ttl}
}

func rawTTL(v any) time.Duration {
	switch t := v.(type) {
	case nil:
		return 0
	case time.Duration:
		return positive(t)
	}
	if ms, ok := number(v); ok {
		return millis(ms)
	}
	return 0
}

// number reports v as float64 when it is any integer or float kind.
func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func millis(ms float64) time.Duration {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0
	}
	if ms >= float64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

// UncacheKind selects how invalidation keys are derived.
type UncacheKind uint8

const (
	UncacheNone UncacheKind = iota
	UncacheStatic
	UncacheDerived
)

// UncacheDirective is the resolved form of a call's uncache option.
type UncacheDirective[V any] struct {
	Kind   UncacheKind
	Static []NamespacedKey
	Fn     func(V) []string
}

// Keys returns the keys to invalidate for result, in order. Empty keys are
// dropped; duplicates are kept.
func (u UncacheDirective[V]) Keys(result V) []string {
	var raw []string
	switch u.Kind {
	case UncacheStatic:
		raw = make([]string, 0, len(u.Static))
		for _, k := range u.Static {
			if k.Key == "" {
				continue
			}
			raw = append(raw, k.String())
		}
	case UncacheDerived:
		if u.Fn != nil {
			raw = u.Fn(result)
		}
	}
	out := raw[:0:0]
	for _, k := range raw {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// ResolveUncache turns a raw uncache option into a directive:
//
//	nil, false, ""                       -> none
//	string, []string                     -> static keys
//	NamespacedKey, []NamespacedKey       -> static, namespace-qualified
//	[]any of string / NamespacedKey / map{key,namespace} -> static
//	func(V) string, func(V) []string     -> derived from the result
//
// Entries of any other type are dropped silently.
func ResolveUncache[V any](raw any) UncacheDirective[V] {
	switch v := raw.(type) {
	case nil:
	case UncacheDirective[V]:
		return v
	case string:
		if v != "" {
			return static[V]([]NamespacedKey{{Key: v}})
		}
	case []string:
		ks := make([]NamespacedKey, 0, len(v))
		for _, k := range v {
			ks = append(ks, NamespacedKey{Key: k})
		}
		return static[V](ks)
	case NamespacedKey:
		return static[V]([]NamespacedKey{v})
	case []NamespacedKey:
		return static[V](v)
	case []any:
		ks := make([]NamespacedKey, 0, len(v))
		for _, e := range v {
			if k, ok := namespacedKey(e); ok {
				ks = append(ks, k)
			}
		}
		return static[V](ks)
	case func(V) string:
		if v != nil {
			return UncacheDirective[V]{Kind: UncacheDerived, Fn: func(r V) []string { return []string{v(r)} }}
		}
	case func(V) []string:
		if v != nil {
			return UncacheDirective[V]{Kind: UncacheDerived, Fn: v}
		}
	}
	return UncacheDirective[V]{Kind: UncacheNone}
}

func static[V any](ks []NamespacedKey) UncacheDirective[V] {
	if len(ks) == 0 {
		return UncacheDirective[V]{Kind: UncacheNone}
	}
	return UncacheDirective[V]{Kind: UncacheStatic, Static: ks}
}

func namespacedKey(e any) (NamespacedKey, bool) {
	switch k := e.(type) {
	case string:
		return NamespacedKey{Key: k}, k != ""
	case NamespacedKey:
		return k, k.Key != ""
	case *NamespacedKey:
		if k == nil {
			return NamespacedKey{}, false
		}
		return *k, k.Key != ""
	case map[string]any:
		key, _ := k["key"].(string)
		ns, _ := k["namespace"].(string)
		return NamespacedKey{Key: key, Namespace: ns}, key != ""
	}
	return NamespacedKey{}, false
}
