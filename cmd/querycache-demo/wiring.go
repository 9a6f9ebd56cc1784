package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	vk "github.com/valkey-io/valkey-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/config"
	"github.com/unkn0wn-root/querycache/lock"
	qlogrus "github.com/unkn0wn-root/querycache/log/logrus"
	qslog "github.com/unkn0wn-root/querycache/log/slog"
	qzap "github.com/unkn0wn-root/querycache/log/zap"
	pr "github.com/unkn0wn-root/querycache/provider"
	pbigcache "github.com/unkn0wn-root/querycache/provider/bigcache"
	predis "github.com/unkn0wn-root/querycache/provider/redis"
	pristretto "github.com/unkn0wn-root/querycache/provider/ristretto"
	pvalkey "github.com/unkn0wn-root/querycache/provider/valkey"
)

func buildLogger(cfg config.LogConfig, w io.Writer) (querycache.Logger, error) {
	switch cfg.Backend {
	case "", "slog":
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging: unsupported level %q", cfg.Level)
		}
		opts := &slog.HandlerOptions{Level: level}
		var h slog.Handler
		switch strings.ToLower(cfg.Format) {
		case "json", "":
			h = slog.NewJSONHandler(w, opts)
		case "text":
			h = slog.NewTextHandler(w, opts)
		default:
			return nil, fmt.Errorf("logging: unsupported format %q", cfg.Format)
		}
		return qslog.New(slog.New(h)), nil

	case "zap":
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			level,
		)
		return qzap.New(zap.New(core)), nil

	case "logrus":
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		l := logrus.New()
		l.SetOutput(w)
		l.SetLevel(level)
		l.SetFormatter(&logrus.JSONFormatter{})
		return qlogrus.New(l), nil
	}
	return nil, fmt.Errorf("logging: unsupported backend %q", cfg.Backend)
}

// backends owns every connection opened for the demo.
type backends struct {
	provider pr.Provider
	locker   lock.Locker
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func buildBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	var (
		rdb goredis.UniversalClient
		vkc vk.Client
	)
	redisClient := func() goredis.UniversalClient {
		if rdb == nil {
			rc := cfg.Provider.Redis
			rdb = goredis.NewClient(&goredis.Options{
				Addr:     rc.Address,
				Username: rc.Username,
				Password: rc.Password,
				DB:       rc.DB,
			})
			b.closers = append(b.closers, func() { _ = rdb.Close() })
		}
		return rdb
	}
	valkeyClient := func() (vk.Client, error) {
		if vkc == nil {
			rc := cfg.Provider.Redis
			c, err := pvalkey.Dial(ctx, rc.Address, rc.Username, rc.Password, rc.DB)
			if err != nil {
				return nil, err
			}
			vkc = c
			b.closers = append(b.closers, vkc.Close)
		}
		return vkc, nil
	}

	switch cfg.Provider.Kind {
	case config.ProviderRistretto:
		rc := cfg.Provider.Ristretto
		p, err := pristretto.New(pristretto.Config{
			NumCounters: rc.NumCounters,
			MaxCost:     rc.MaxCost,
			BufferItems: rc.BufferItems,
		})
		if err != nil {
			return nil, err
		}
		b.provider = p
	case config.ProviderBigcache:
		bc := cfg.Provider.Bigcache
		p, err := pbigcache.New(ctx, pbigcache.Config{
			LifeWindow:         bc.LifeWindow,
			CleanWindow:        bc.CleanWindow,
			Shards:             bc.Shards,
			HardMaxCacheSizeMB: bc.HardMaxCacheSizeMB,
		})
		if err != nil {
			return nil, err
		}
		b.provider = p
	case config.ProviderRedis:
		if err := redisClient().Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("redis provider: ping: %w", err)
		}
		p, err := predis.New(predis.Config{Client: rdb})
		if err != nil {
			b.close()
			return nil, err
		}
		b.provider = p
	case config.ProviderValkey:
		c, err := valkeyClient()
		if err != nil {
			return nil, err
		}
		p, err := pvalkey.New(pvalkey.Config{Client: c})
		if err != nil {
			b.close()
			return nil, err
		}
		b.provider = p
	default:
		return nil, fmt.Errorf("provider kind %q is not supported", cfg.Provider.Kind)
	}
	prov := b.provider
	b.closers = append(b.closers, func() { _ = prov.Close(context.Background()) })

	switch cfg.Lock.Backend {
	case "", config.LockNone:
	case config.LockLocal:
		l := lock.NewLocal(time.Minute)
		b.locker = l
		b.closers = append(b.closers, func() { _ = l.Close(context.Background()) })
	case config.LockRedis:
		b.locker = lock.NewRedis(redisClient())
	case config.LockValkey:
		c, err := valkeyClient()
		if err != nil {
			b.close()
			return nil, err
		}
		b.locker = lock.NewValkey(c)
	default:
		b.close()
		return nil, fmt.Errorf("lock backend %q is not supported", cfg.Lock.Backend)
	}
	return b, nil
}

// options maps the deployment config onto querycache.Options.
func options[V any](cfg config.Config, b *backends, cd codec.Codec[V], log querycache.Logger, hooks querycache.Hooks) querycache.Options[V] {
	return querycache.Options[V]{
		Provider: b.provider,
		Codec:    cd,
		Locker:   b.locker,
		Lock: querycache.LockConfig{
			Prefix:      cfg.Lock.Prefix,
			TTL:         cfg.Lock.TTL,
			WaitTimeout: cfg.Lock.WaitTimeout,
			RetryDelay:  cfg.Lock.RetryDelay,
			RetryJitter: cfg.Lock.RetryJitter,
		},
		KeyPrefix:  cfg.KeyPrefix,
		DefaultTTL: cfg.DefaultTTL,
		Logger:     log,
		Hooks:      hooks,
		Disabled:   cfg.Disabled,
	}
}
