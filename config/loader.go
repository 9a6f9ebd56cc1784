package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix NewLoader callers normally pass.
const DefaultEnvPrefix = "QUERYCACHE"

// Loader layers defaults < YAML files < environment.
type Loader struct {
	envPrefix string
	files     []string
}

func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load returns the validated configuration.
//
// Environment keys nest with double underscores:
// QUERYCACHE_LOCK__WAIT_TIMEOUT=500ms sets lock.wait_timeout.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			return strings.ToLower(key)
		}
		if err := k.Load(env.Provider(l.envPrefix+"_", ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// structToMap converts a Config into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"key_prefix":  cfg.KeyPrefix,
		"default_ttl": cfg.DefaultTTL,
		"disabled":    cfg.Disabled,
		"provider": map[string]any{
			"kind": cfg.Provider.Kind,
			"redis": map[string]any{
				"address":  cfg.Provider.Redis.Address,
				"username": cfg.Provider.Redis.Username,
				"password": cfg.Provider.Redis.Password,
				"db":       cfg.Provider.Redis.DB,
			},
			"ristretto": map[string]any{
				"num_counters": cfg.Provider.Ristretto.NumCounters,
				"max_cost":     cfg.Provider.Ristretto.MaxCost,
				"buffer_items": cfg.Provider.Ristretto.BufferItems,
			},
			"bigcache": map[string]any{
				"life_window":            cfg.Provider.Bigcache.LifeWindow,
				"clean_window":           cfg.Provider.Bigcache.CleanWindow,
				"shards":                 cfg.Provider.Bigcache.Shards,
				"hard_max_cache_size_mb": cfg.Provider.Bigcache.HardMaxCacheSizeMB,
			},
		},
		"lock": map[string]any{
			"backend":      cfg.Lock.Backend,
			"prefix":       cfg.Lock.Prefix,
			"ttl":          cfg.Lock.TTL,
			"wait_timeout": cfg.Lock.WaitTimeout,
			"retry_delay":  cfg.Lock.RetryDelay,
			"retry_jitter": cfg.Lock.RetryJitter,
		},
		"log": map[string]any{
			"backend": cfg.Log.Backend,
			"level":   cfg.Log.Level,
			"format":  cfg.Log.Format,
		},
	}
}
