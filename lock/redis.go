package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisUnlock = redis.NewScript(unlockScript)

// Redis stores lock records with SET NX PX and releases them with a
// compare-and-delete script. Safe to share the client with provider/redis.
type Redis struct {
	rdb redis.UniversalClient
}

var _ Locker = (*Redis)(nil)

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{rdb: client}
}

func (r *Redis) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (r *Redis) Unlock(ctx context.Context, key, token string) error {
	err := redisUnlock.Run(ctx, r.rdb, []string{key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
