package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the daemon configuration with env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Files returns the config files the loader reads, in order.
func (l *Loader) Files() []string { return append([]string(nil), l.files...) }

// canonical restores camelCase keys lost by lower-casing env names.
var canonical = map[string]string{
	"cache.installtimeout":     "cache.installTimeout",
	"cache.fetchretries":       "cache.fetchRetries",
	"cache.maxassetbytes":      "cache.maxAssetBytes",
	"store.redis.tls.cafile":   "store.redis.tls.caFile",
	"store.bigcache.maxsizemb": "store.bigcache.maxSizeMB",
	"store.ristretto.maxcost":  "store.ristretto.maxCost",
}

func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(key, value string) (string, any) {
			// Double underscores signal a nested path (CACHE__GENERATION -> cache.generation).
			key = strings.TrimPrefix(key, l.envPrefix+"_")
			key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
			if mapped, ok := canonical[key]; ok {
				key = mapped
			}
			if key == "cache.manifest" {
				return key, splitList(value)
			}
			return key, value
		}
		if err := k.Load(env.ProviderWithValue(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listen": cfg.Server.Listen,
			"logging": map[string]any{
				"level":  cfg.Server.Logging.Level,
				"format": cfg.Server.Logging.Format,
			},
		},
		"cache": map[string]any{
			"generation":     cfg.Cache.Generation,
			"origin":         cfg.Cache.Origin,
			"manifest":       cfg.Cache.Manifest,
			"concurrency":    cfg.Cache.Concurrency,
			"installTimeout": cfg.Cache.InstallTimeout,
			"fetchRetries":   cfg.Cache.FetchRetries,
			"maxAssetBytes":  cfg.Cache.MaxAssetBytes,
			"resume":         cfg.Cache.Resume,
		},
		"store": map[string]any{
			"backend":   cfg.Store.Backend,
			"namespace": cfg.Store.Namespace,
			"codec":     cfg.Store.Codec,
			"redis": map[string]any{
				"address":  cfg.Store.Redis.Address,
				"username": cfg.Store.Redis.Username,
				"password": cfg.Store.Redis.Password,
				"db":       cfg.Store.Redis.DB,
				"tls": map[string]any{
					"enabled": cfg.Store.Redis.TLS.Enabled,
					"caFile":  cfg.Store.Redis.TLS.CAFile,
				},
			},
			"sqlite": map[string]any{
				"path": cfg.Store.SQLite.Path,
			},
			"bigcache": map[string]any{
				"maxSizeMB": cfg.Store.BigCache.MaxSizeMB,
			},
			"ristretto": map[string]any{
				"maxCost": cfg.Store.Ristretto.MaxCost,
			},
		},
	}
}
