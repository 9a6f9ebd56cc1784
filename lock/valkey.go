package lock

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

var valkeyUnlock = valkey.NewLuaScript(unlockScript)

// Valkey is the valkey-go flavour of Redis.
type Valkey struct {
	client valkey.Client
}

var _ Locker = (*Valkey)(nil)

func NewValkey(client valkey.Client) *Valkey {
	return &Valkey{client: client}
}

func (v *Valkey) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := v.client.B().Set().Key(key).Value(token).Nx().Px(ttl).Build()
	err := v.client.Do(ctx, cmd).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil // NX not satisfied
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (v *Valkey) Unlock(ctx context.Context, key, token string) error {
	err := valkeyUnlock.Exec(ctx, v.client, []string{key}, []string{token}).Error()
	if valkey.IsValkeyNil(err) {
		return nil
	}
	return err
}
