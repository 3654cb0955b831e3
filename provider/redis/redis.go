package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/assetcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Provider stores framed entries as plain Redis strings. Entries never
// expire; a generation's keys go away only through store.Delete.
type Provider struct {
	rdb    goredis.UniversalClient
	owned  bool
	closed atomic.Bool
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Client goredis.UniversalClient
	// CloseClient hands the client to the provider. Leave it false when a
	// genstore.RedisGenStore shares the same client and closes it.
	CloseClient bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Provider{rdb: cfg.Client, owned: cfg.CloseClient}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis provider: get: %w", err)
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64) (bool, error) {
	if err := p.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return false, fmt.Errorf("redis provider: set: %w", err)
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis provider: del: %w", err)
	}
	return nil
}

// Close is idempotent and only closes an owned client.
func (p *Provider) Close(context.Context) error {
	if !p.owned || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.rdb.Close()
}
