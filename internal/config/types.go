package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Config holds every daemon option: the HTTP front, the cache version to
// serve and the backing store.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Cache  CacheConfig  `koanf:"cache"`
	Store  StoreConfig  `koanf:"store"`
}

// ServerConfig collects the listener and logging knobs.
type ServerConfig struct {
	Listen  string        `koanf:"listen"`
	Logging LoggingConfig `koanf:"logging"`
}

// LoggingConfig expresses log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig describes one cache version: its generation, the origin it
// mirrors and the assets installed up front.
type CacheConfig struct {
	Generation     string        `koanf:"generation"`
	Origin         string        `koanf:"origin"`
	Manifest       []string      `koanf:"manifest"`
	Concurrency    int           `koanf:"concurrency"`
	InstallTimeout time.Duration `koanf:"installTimeout"`
	FetchRetries   int           `koanf:"fetchRetries"`
	MaxAssetBytes  int64         `koanf:"maxAssetBytes"`
	// Resume adopts a generation already present in a persistent store
	// instead of fetching the manifest again on start.
	Resume bool `koanf:"resume"`
}

type StoreConfig struct {
	Backend   string               `koanf:"backend"`
	Namespace string               `koanf:"namespace"`
	Codec     string               `koanf:"codec"`
	Redis     StoreRedisConfig     `koanf:"redis"`
	SQLite    StoreSQLiteConfig    `koanf:"sqlite"`
	BigCache  StoreBigCacheConfig  `koanf:"bigcache"`
	Ristretto StoreRistrettoConfig `koanf:"ristretto"`
}

// StoreRedisConfig is shared by the redis and valkey backends.
type StoreRedisConfig struct {
	Address  string              `koanf:"address"`
	Username string              `koanf:"username"`
	Password string              `koanf:"password"`
	DB       int                 `koanf:"db"`
	TLS      StoreRedisTLSConfig `koanf:"tls"`
}

type StoreRedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

type StoreSQLiteConfig struct {
	Path string `koanf:"path"`
}

type StoreBigCacheConfig struct {
	MaxSizeMB int `koanf:"maxSizeMB"`
}

type StoreRistrettoConfig struct {
	MaxCost int64 `koanf:"maxCost"`
}

const (
	BackendMemory    = "memory"
	BackendBigCache  = "bigcache"
	BackendRistretto = "ristretto"
	BackendRedis     = "redis"
	BackendValkey    = "valkey"
	BackendSQLite    = "sqlite"
)

var (
	validBackends = map[string]struct{}{
		BackendMemory: {}, BackendBigCache: {}, BackendRistretto: {},
		BackendRedis: {}, BackendValkey: {}, BackendSQLite: {},
	}
	validCodecs  = map[string]struct{}{"json": {}, "msgpack": {}, "cbor": {}, "proto": {}}
	validFormats = map[string]struct{}{"text": {}, "json": {}}
)

// DefaultConfig returns the baseline used before files and env are applied.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ":8080",
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
		Cache: CacheConfig{
			Concurrency: 6,
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			Namespace: "assetcache",
			Codec:     "msgpack",
			Redis: StoreRedisConfig{
				Address: "127.0.0.1:6379",
			},
			SQLite: StoreSQLiteConfig{
				Path: "assetcache.db",
			},
			Ristretto: StoreRistrettoConfig{
				MaxCost: 256 << 20,
			},
		},
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	if strings.TrimSpace(c.Server.Listen) == "" {
		errs = multierr.Append(errs, errors.New("server.listen is required"))
	}
	if _, err := logrus.ParseLevel(c.Server.Logging.Level); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("server.logging.level: %w", err))
	}
	if _, ok := validFormats[strings.ToLower(c.Server.Logging.Format)]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("server.logging.format %q must be text or json", c.Server.Logging.Format))
	}

	if strings.TrimSpace(c.Cache.Generation) == "" {
		errs = multierr.Append(errs, errors.New("cache.generation is required"))
	}
	if c.Cache.Origin != "" {
		u, err := url.Parse(c.Cache.Origin)
		if err != nil || !u.IsAbs() {
			errs = multierr.Append(errs, fmt.Errorf("cache.origin %q must be an absolute URL", c.Cache.Origin))
		}
	}
	if c.Cache.Concurrency < 0 || c.Cache.FetchRetries < 0 || c.Cache.MaxAssetBytes < 0 || c.Cache.InstallTimeout < 0 {
		errs = multierr.Append(errs, errors.New("cache: concurrency, fetchRetries, maxAssetBytes and installTimeout must not be negative"))
	}

	if _, ok := validBackends[c.Store.Backend]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("store.backend %q is not supported", c.Store.Backend))
	}
	if _, ok := validCodecs[c.Store.Codec]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("store.codec %q is not supported", c.Store.Codec))
	}
	if strings.TrimSpace(c.Store.Namespace) == "" {
		errs = multierr.Append(errs, errors.New("store.namespace is required"))
	}
	switch c.Store.Backend {
	case BackendRedis, BackendValkey:
		if c.Store.Redis.Address == "" {
			errs = multierr.Append(errs, fmt.Errorf("store.redis.address is required for backend %s", c.Store.Backend))
		}
	case BackendSQLite:
		if c.Store.SQLite.Path == "" {
			errs = multierr.Append(errs, errors.New("store.sqlite.path is required for backend sqlite"))
		}
	}
	return errs
}
