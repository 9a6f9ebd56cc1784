package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// lockerContract runs the behavior every backend must share.
// expire moves the backend's clock past ttl.
func lockerContract(t *testing.T, l Locker, expire func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	const key = "prisma-cache-lock:user@abc"
	ttl := 5 * time.Second

	ok, err := l.TryLock(ctx, key, "tok-1", ttl)
	require.NoError(t, err)
	require.True(t, ok, "first acquire should win")

	ok, err = l.TryLock(ctx, key, "tok-2", ttl)
	require.NoError(t, err)
	require.False(t, ok, "second acquire must fail while held")

	// wrong token never releases
	require.NoError(t, l.Unlock(ctx, key, "tok-2"))
	ok, err = l.TryLock(ctx, key, "tok-3", ttl)
	require.NoError(t, err)
	require.False(t, ok, "lock released by non-holder")

	require.NoError(t, l.Unlock(ctx, key, "tok-1"))
	ok, err = l.TryLock(ctx, key, "tok-4", ttl)
	require.NoError(t, err)
	require.True(t, ok, "lock should be free after holder release")

	// expiry frees the record; the stale holder must not release the new one
	expire(ttl + time.Millisecond)
	ok, err = l.TryLock(ctx, key, "tok-5", ttl)
	require.NoError(t, err)
	require.True(t, ok, "expired lock should be acquirable")

	require.NoError(t, l.Unlock(ctx, key, "tok-4"))
	ok, err = l.TryLock(ctx, key, "tok-6", ttl)
	require.NoError(t, err)
	require.False(t, ok, "stale holder released someone else's lock")

	require.NoError(t, l.Unlock(ctx, "never-locked", "tok"))
}

func TestLocalLocker(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewLocal(0)
	l.now = clock.now
	t.Cleanup(func() { _ = l.Close(context.Background()) })

	lockerContract(t, l, clock.advance)
}

func TestLocalSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewLocal(0)
	l.now = clock.now

	ok, err := l.TryLock(context.Background(), "k", "t", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, l.Held("k"))

	clock.advance(2 * time.Second)
	require.False(t, l.Held("k"))
	l.Sweep()

	l.mu.Lock()
	n := len(l.locks)
	l.mu.Unlock()
	require.Zero(t, n, "sweep should prune expired records")
}

func TestLocalConcurrentAcquireHasOneWinner(t *testing.T) {
	l := NewLocal(time.Minute)
	t.Cleanup(func() { _ = l.Close(context.Background()) })

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.TryLock(context.Background(), "hot", "t", time.Minute); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), winners.Load())
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lockerContract(t, NewRedis(rdb), mr.FastForward)
}

func TestRedisLockerStoresTokenWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ok, err := NewRedis(rdb).TryLock(context.Background(), "lk", "token", 1500*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := mr.Get("lk")
	require.NoError(t, err)
	require.Equal(t, "token", got)
	require.Equal(t, 1500*time.Millisecond, mr.TTL("lk"))
}

func TestValkeyLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{mr.Addr()},
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	lockerContract(t, NewValkey(client), mr.FastForward)
}
