package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/config"
)

func redisConfig(t *testing.T, kind, lockBackend string) (config.Config, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.KeyPrefix = "demo"
	cfg.Provider.Kind = kind
	cfg.Provider.Redis.Address = mr.Addr()
	cfg.Lock.Backend = lockBackend
	require.NoError(t, cfg.Validate())
	return cfg, mr
}

func newTestApp(t *testing.T, cfg config.Config) *app {
	t.Helper()
	ctx := context.Background()
	b, err := buildBackends(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(b.close)

	db, err := openDB(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := newApp(db, cfg, b, querycache.NopLogger{}, querycache.NopHooks{})
	require.NoError(t, err)
	return a
}

func TestScenarioOnRedis(t *testing.T) {
	cfg, mr := redisConfig(t, config.ProviderRedis, config.LockRedis)
	a := newTestApp(t, cfg)

	require.NoError(t, a.scenario(context.Background()))
	// 3 first reads, 1 create, list and count after invalidation
	require.Equal(t, int64(6), a.queries.Load())

	require.True(t, mr.Exists("demo:users:all"))
	require.True(t, mr.Exists("demo:user_count"))
	require.True(t, mr.Exists("demo:user-4"))
	// locks are released after every fill
	for _, k := range mr.Keys() {
		require.False(t, strings.HasPrefix(k, "prisma-cache-lock:"), "leftover lock %s", k)
	}
	require.Equal(t, 5*time.Minute, mr.TTL("demo:users:all"))
	require.Equal(t, time.Minute, mr.TTL("demo:user-1"))
}

func TestScenarioOnValkey(t *testing.T) {
	cfg, mr := redisConfig(t, config.ProviderValkey, config.LockValkey)
	a := newTestApp(t, cfg)

	require.NoError(t, a.scenario(context.Background()))
	require.Equal(t, int64(6), a.queries.Load())
	require.True(t, mr.Exists("demo:user-4"))
}

func TestCreateInvalidatesListAndCount(t *testing.T) {
	cfg, mr := redisConfig(t, config.ProviderRedis, config.LockNone)
	a := newTestApp(t, cfg)
	ctx := context.Background()

	list, err := a.listUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	n, err := a.countUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, mr.Exists("demo:users:all"))

	_, err = a.createUser(ctx, "Edsger Dijkstra", "edsger@example.com")
	require.NoError(t, err)
	require.False(t, mr.Exists("demo:users:all"))
	require.False(t, mr.Exists("demo:user_count"))

	list, err = a.listUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
}

func TestQueryErrorsReachCaller(t *testing.T) {
	cfg, _ := redisConfig(t, config.ProviderRedis, config.LockLocal)
	a := newTestApp(t, cfg)

	_, err := a.findUser(context.Background(), 999)
	require.Error(t, err)
	_, err = a.createUser(context.Background(), "dup", "ada@example.com")
	require.Error(t, err, "unique constraint should fail")
}

func TestRunInProcess(t *testing.T) {
	for _, kind := range []string{config.ProviderRistretto, config.ProviderBigcache} {
		t.Run(kind, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Provider.Kind = kind
			var out bytes.Buffer
			require.NoError(t, run(context.Background(), cfg, &out, ""))
			require.Contains(t, out.String(), `"msg":"read after write"`)
		})
	}
}

func TestBuildLogger(t *testing.T) {
	for _, backend := range []string{"slog", "zap", "logrus"} {
		var out bytes.Buffer
		l, err := buildLogger(config.LogConfig{Backend: backend, Level: "info", Format: "json"}, &out)
		require.NoError(t, err, backend)
		l.Debug("hidden", nil)
		l.Info("visible", querycache.Fields{"k": "v"})
		require.NotContains(t, out.String(), "hidden", backend)
		require.Contains(t, out.String(), "visible", backend)
	}
	_, err := buildLogger(config.LogConfig{Backend: "slog", Level: "loud"}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestBuildBackendsRejectsUnreachableRedis(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Kind = config.ProviderRedis
	cfg.Provider.Redis.Address = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := buildBackends(ctx, cfg)
	require.Error(t, err)
}
