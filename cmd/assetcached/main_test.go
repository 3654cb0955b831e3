package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/internal/config"
	"github.com/unkn0wn-root/assetcache/response"
)

func TestBuildStoreBackends(t *testing.T) {
	cases := map[string]func(t *testing.T) config.StoreConfig{
		"memory": func(t *testing.T) config.StoreConfig {
			return config.StoreConfig{Backend: config.BackendMemory}
		},
		"sqlite": func(t *testing.T) config.StoreConfig {
			return config.StoreConfig{Backend: config.BackendSQLite, SQLite: config.StoreSQLiteConfig{Path: filepath.Join(t.TempDir(), "cache.db")}}
		},
		"bigcache": func(t *testing.T) config.StoreConfig {
			return config.StoreConfig{Backend: config.BackendBigCache, Namespace: "site", Codec: "json"}
		},
		"ristretto": func(t *testing.T) config.StoreConfig {
			return config.StoreConfig{Backend: config.BackendRistretto, Namespace: "site", Codec: "cbor", Ristretto: config.StoreRistrettoConfig{MaxCost: 1 << 20}}
		},
		"redis": func(t *testing.T) config.StoreConfig {
			srv := miniredis.RunT(t)
			return config.StoreConfig{Backend: config.BackendRedis, Namespace: "site", Codec: "proto", Redis: config.StoreRedisConfig{Address: srv.Addr()}}
		},
		"valkey": func(t *testing.T) config.StoreConfig {
			srv := miniredis.RunT(t)
			return config.StoreConfig{Backend: config.BackendValkey, Namespace: "site", Codec: "msgpack", Redis: config.StoreRedisConfig{Address: srv.Addr()}}
		},
	}

	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := buildStore(ctx, mk(t), assetcache.NopHooks{}, log.NewEntry(log.New()))
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close(ctx) })

			c, err := st.Open(ctx, "v1")
			require.NoError(t, err)
			snap := response.Response{URL: "https://site.test/", Status: 200, Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte("home")}
			require.NoError(t, c.Put(ctx, snap.URL, snap))

			got, ok, err := c.Get(ctx, snap.URL)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, snap.Body, got.Body)

			gens, err := st.ListGenerations(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"v1"}, gens)
		})
	}
}

func TestBuildStoreErrors(t *testing.T) {
	ctx := context.Background()

	_, err := buildStore(ctx, config.StoreConfig{Backend: "etcd", Namespace: "site"}, assetcache.NopHooks{}, log.NewEntry(log.New()))
	assert.ErrorContains(t, err, "unknown store backend")

	_, err = buildStore(ctx, config.StoreConfig{Backend: config.BackendBigCache, Namespace: "site", Codec: "xml"}, assetcache.NopHooks{}, log.NewEntry(log.New()))
	assert.ErrorContains(t, err, "unknown codec")

	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	_, err = buildStore(ctx, config.StoreConfig{Backend: config.BackendRedis, Namespace: "site", Redis: config.StoreRedisConfig{Address: addr}}, assetcache.NopHooks{}, log.NewEntry(log.New()))
	assert.ErrorContains(t, err, "redis ping")
}

func TestNewLogger(t *testing.T) {
	l := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, false)
	assert.Equal(t, log.WarnLevel, l.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, l.Formatter)

	l = newLogger(config.LoggingConfig{Level: "warn", Format: "text"}, true)
	assert.Equal(t, log.DebugLevel, l.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, l.Formatter)
}

func TestRunDeploysAndStops(t *testing.T) {
	var hits atomic.Int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer origin.Close()

	cfg := config.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Cache.Generation = "v1"
	cfg.Cache.Origin = origin.URL
	cfg.Cache.Manifest = []string{"/", "/style.css"}

	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, config.NewLoader(""), cfg, logger, false) }()

	require.Eventually(t, func() bool { return hits.Load() >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}
}
