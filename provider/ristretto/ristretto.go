package ristretto

import (
	"context"
	"fmt"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/assetcache/provider"
)

// Provider wraps a ristretto cache. Ristretto is admission-controlled: Set
// may be dropped, which the store surfaces as a rejected write and install
// fails as a whole. Size MaxCost well above one generation's bytes.
type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64 // in bytes; cost of an entry is its encoded length
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, fmt.Errorf("ristretto provider: NumCounters, MaxCost and BufferItems must be positive (got %d, %d, %d)",
			cfg.NumCounters, cfg.MaxCost, cfg.BufferItems)
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto provider: %w", err)
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer to drain so a following Get observes the
// value; install relies on read-after-write.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	ok := p.c.Set(key, value, cost)
	p.c.Wait()
	if !ok {
		return false, nil
	}
	if _, found := p.c.Get(key); !found {
		return false, nil
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes ristretto's counters; nil unless Config.Metrics was set.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
