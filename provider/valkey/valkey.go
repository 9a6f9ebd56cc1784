package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	vk "github.com/valkey-io/valkey-go"

	pr "github.com/unkn0wn-root/querycache/provider"
)

var ErrNilClient = errors.New("valkey provider: nil client")

// Valkey stores entries in a Valkey/Redis server through valkey-go.
type Valkey struct {
	client      vk.Client
	closeClient bool
}

var (
	_ pr.Provider     = (*Valkey)(nil)
	_ pr.BatchDeleter = (*Valkey)(nil)
)

type Config struct {
	Client      vk.Client
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Valkey, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Valkey{client: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// Dial builds a single-node client with server-assisted client caching
// disabled; querycache already sits in front of the store.
func Dial(ctx context.Context, addr, username, password string, db int) (vk.Client, error) {
	if addr == "" {
		return nil, errors.New("valkey provider: address required")
	}
	client, err := vk.NewClient(vk.ClientOption{
		InitAddress:       []string{addr},
		Username:          username,
		Password:          password,
		SelectDB:          db,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey provider: client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey provider: ping: %w", err)
	}
	return client, nil
}

// Client exposes the underlying client so a lock.Valkey can share it.
func (p *Valkey) Client() vk.Client { return p.client }

func (p *Valkey) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := p.client.Do(ctx, p.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if vk.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	b, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Valkey) Set(ctx context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var cmd vk.Completed
	if ttl > 0 {
		cmd = p.client.B().Set().Key(key).Value(vk.BinaryString(value)).Px(ttl).Build()
	} else {
		cmd = p.client.B().Set().Key(key).Value(vk.BinaryString(value)).Build()
	}
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Valkey) Del(ctx context.Context, key string) error {
	return p.client.Do(ctx, p.client.B().Del().Key(key).Build()).Error()
}

func (p *Valkey) DelMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.client.Do(ctx, p.client.B().Del().Key(keys...).Build()).Error()
}

func (p *Valkey) Close(context.Context) error {
	if p.closeClient {
		p.client.Close()
	}
	return nil
}
