package valkey

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	vk "github.com/valkey-io/valkey-go"

	pr "github.com/unkn0wn-root/assetcache/provider"
)

type TLSConfig struct {
	Enabled bool
	CAFile  string
}

type Config struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      TLSConfig
}

// Provider stores entries in Valkey (or any RESP server) through valkey-go.
type Provider struct {
	client vk.Client
}

var _ pr.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.Address == "" {
		return nil, errors.New("valkey provider: address required")
	}

	option := vk.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				return nil, fmt.Errorf("valkey provider: read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("valkey provider: ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := vk.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("valkey provider: client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey provider: ping: %w", err)
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := p.client.Do(ctx, p.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, vk.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("valkey provider: get: %w", err)
	}
	b, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("valkey provider: get bytes: %w", err)
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64) (bool, error) {
	cmd := p.client.B().Set().Key(key).Value(vk.BinaryString(value)).Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return false, fmt.Errorf("valkey provider: set: %w", err)
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	if err := p.client.Do(ctx, p.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("valkey provider: del: %w", err)
	}
	return nil
}

func (p *Provider) Close(context.Context) error {
	p.client.Close()
	return nil
}
