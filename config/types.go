// Package config loads the settings a querycache deployment is built from.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the deployment-level view of querycache.Options plus the choice of
// backends behind it.
type Config struct {
	KeyPrefix  string         `koanf:"key_prefix"`
	DefaultTTL time.Duration  `koanf:"default_ttl"`
	Disabled   bool           `koanf:"disabled"`
	Provider   ProviderConfig `koanf:"provider"`
	Lock       LockConfig     `koanf:"lock"`
	Log        LogConfig      `koanf:"log"`
}

// ProviderConfig selects the byte store. Kind is one of ristretto, bigcache,
// redis or valkey.
type ProviderConfig struct {
	Kind      string          `koanf:"kind"`
	Redis     RedisConfig     `koanf:"redis"`
	Ristretto RistrettoConfig `koanf:"ristretto"`
	Bigcache  BigcacheConfig  `koanf:"bigcache"`
}

// RedisConfig is shared by the redis and valkey providers and lock backends.
type RedisConfig struct {
	Address  string `koanf:"address"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type RistrettoConfig struct {
	NumCounters int64 `koanf:"num_counters"`
	MaxCost     int64 `koanf:"max_cost"`
	BufferItems int64 `koanf:"buffer_items"`
}

type BigcacheConfig struct {
	LifeWindow         time.Duration `koanf:"life_window"`
	CleanWindow        time.Duration `koanf:"clean_window"`
	Shards             int           `koanf:"shards"`
	HardMaxCacheSizeMB int           `koanf:"hard_max_cache_size_mb"`
}

// LockConfig selects the stampede lock. Backend is one of none, local, redis
// or valkey; redis and valkey reuse Provider.Redis for the connection.
type LockConfig struct {
	Backend     string        `koanf:"backend"`
	Prefix      string        `koanf:"prefix"`
	TTL         time.Duration `koanf:"ttl"`
	WaitTimeout time.Duration `koanf:"wait_timeout"`
	RetryDelay  time.Duration `koanf:"retry_delay"`
	RetryJitter time.Duration `koanf:"retry_jitter"`
}

// LogConfig picks the logging backend (slog, zap, logrus) and its level.
type LogConfig struct {
	Backend string `koanf:"backend"`
	Level   string `koanf:"level"`
	Format  string `koanf:"format"` // slog only: json or text
}

const (
	ProviderRistretto = "ristretto"
	ProviderBigcache  = "bigcache"
	ProviderRedis     = "redis"
	ProviderValkey    = "valkey"

	LockNone   = "none"
	LockLocal  = "local"
	LockRedis  = "redis"
	LockValkey = "valkey"
)

// DefaultConfig is an in-process setup: ristretto storage, a local lock and
// JSON slog output at info.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 5 * time.Minute,
		Provider: ProviderConfig{
			Kind: ProviderRistretto,
			Redis: RedisConfig{
				Address: "127.0.0.1:6379",
			},
			Ristretto: RistrettoConfig{
				NumCounters: 100_000,
				MaxCost:     64 << 20,
				BufferItems: 64,
			},
			Bigcache: BigcacheConfig{
				LifeWindow:         10 * time.Minute,
				CleanWindow:        time.Minute,
				Shards:             256,
				HardMaxCacheSizeMB: 256,
			},
		},
		Lock: LockConfig{
			Backend:     LockLocal,
			Prefix:      "prisma-cache-lock",
			TTL:         5 * time.Second,
			WaitTimeout: 2 * time.Second,
			RetryDelay:  40 * time.Millisecond,
			RetryJitter: 20 * time.Millisecond,
		},
		Log: LogConfig{
			Backend: "slog",
			Level:   "info",
			Format:  "json",
		},
	}
}

// Validate normalizes enum fields to lower case and rejects unknown values.
func (c *Config) Validate() error {
	var errs []error

	c.Provider.Kind = norm(c.Provider.Kind)
	switch c.Provider.Kind {
	case ProviderRistretto, ProviderBigcache:
	case ProviderRedis, ProviderValkey:
		if strings.TrimSpace(c.Provider.Redis.Address) == "" {
			errs = append(errs, fmt.Errorf("provider.redis.address is required for %s", c.Provider.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("provider.kind %q is not supported", c.Provider.Kind))
	}

	c.Lock.Backend = norm(c.Lock.Backend)
	switch c.Lock.Backend {
	case "", LockNone, LockLocal, LockRedis, LockValkey:
	default:
		errs = append(errs, fmt.Errorf("lock.backend %q is not supported", c.Lock.Backend))
	}

	c.Log.Backend = norm(c.Log.Backend)
	switch c.Log.Backend {
	case "slog", "zap", "logrus":
	default:
		errs = append(errs, fmt.Errorf("log.backend %q is not supported", c.Log.Backend))
	}
	c.Log.Level = norm(c.Log.Level)
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not supported", c.Log.Level))
	}

	for name, d := range map[string]time.Duration{
		"default_ttl":       c.DefaultTTL,
		"lock.ttl":          c.Lock.TTL,
		"lock.wait_timeout": c.Lock.WaitTimeout,
		"lock.retry_delay":  c.Lock.RetryDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
