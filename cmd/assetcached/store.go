package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/codec"
	"github.com/unkn0wn-root/assetcache/genstore"
	"github.com/unkn0wn-root/assetcache/internal/config"
	"github.com/unkn0wn-root/assetcache/provider"
	"github.com/unkn0wn-root/assetcache/provider/bigcache"
	redisprov "github.com/unkn0wn-root/assetcache/provider/redis"
	"github.com/unkn0wn-root/assetcache/provider/ristretto"
	"github.com/unkn0wn-root/assetcache/provider/valkey"
	"github.com/unkn0wn-root/assetcache/response"
	"github.com/unkn0wn-root/assetcache/store"
	"github.com/unkn0wn-root/assetcache/store/sqlite"
)

// buildStore opens the configured backend. Byte providers are layered under
// store.NewProviderStore; redis and valkey keep their generation registry in
// redis so it survives restarts.
func buildStore(ctx context.Context, cfg config.StoreConfig, hooks assetcache.Hooks, logger *log.Entry) (store.Store, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLite.Path)
	}

	c, err := codecFor(cfg.Codec)
	if err != nil {
		return nil, err
	}
	opts := store.ProviderOptions{
		Namespace: cfg.Namespace,
		Codec:     c,
		SelfHeal:  hooks.SelfHeal,
		HealFailed: func(storageKey, reason string, err error) {
			logger.WithError(err).WithFields(log.Fields{"key": storageKey, "reason": reason}).Warn("could not drop unreadable entry")
		},
	}

	switch cfg.Backend {
	case config.BackendBigCache:
		p, err := bigcache.New(bigcache.Config{HardMaxCacheSizeMB: cfg.BigCache.MaxSizeMB})
		if err != nil {
			return nil, err
		}
		opts.Provider = p
	case config.BackendRistretto:
		p, err := ristretto.New(ristretto.Config{
			NumCounters: 1e6,
			MaxCost:     cfg.Ristretto.MaxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		opts.Provider = p
	case config.BackendRedis:
		client, err := redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		p, err := redisprov.New(redisprov.Config{Client: client})
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		// the registry owns the shared client
		opts.Provider = p
		opts.GenStore = genstore.NewRedisGenStore(client, cfg.Namespace)
	case config.BackendValkey:
		p, err := valkey.New(valkey.Config{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      valkey.TLSConfig{Enabled: cfg.Redis.TLS.Enabled, CAFile: cfg.Redis.TLS.CAFile},
		})
		if err != nil {
			return nil, err
		}
		client, err := redisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, multierr.Append(err, p.Close(ctx))
		}
		opts.Provider = p
		opts.GenStore = genstore.NewRedisGenStore(client, cfg.Namespace)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}

	st, err := store.NewProviderStore(opts)
	if err != nil {
		return nil, closeAfter(ctx, err, opts.Provider, opts.GenStore)
	}
	return st, nil
}

func closeAfter(ctx context.Context, err error, p provider.Provider, g genstore.GenStore) error {
	err = multierr.Append(err, p.Close(ctx))
	if g != nil {
		err = multierr.Append(err, g.Close(ctx))
	}
	return err
}

func codecFor(name string) (codec.Codec[response.Response], error) {
	switch name {
	case "", "msgpack":
		return codec.Msgpack[response.Response]{}, nil
	case "json":
		return codec.JSON[response.Response]{}, nil
	case "cbor":
		return codec.NewCBOR[response.Response](true)
	case "proto":
		return codec.ResponseProto{}, nil
	}
	return nil, errors.Errorf("unknown codec %q", name)
}

func redisClient(ctx context.Context, cfg config.StoreRedisConfig) (*goredis.Client, error) {
	opts := &goredis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS.Enabled {
		tc, err := tlsConfig(cfg.TLS.CAFile)
		if err != nil {
			return nil, err
		}
		opts.TLSConfig = tc
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "redis ping %s", cfg.Address), client.Close())
	}
	return client, nil
}

func tlsConfig(caFile string) (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return tc, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "read redis ca file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("redis ca file contains no certificates")
	}
	tc.RootCAs = pool
	return tc, nil
}
