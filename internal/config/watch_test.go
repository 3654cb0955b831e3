package config

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := writeFile(t, minimalYAML)
	loader := NewLoader("", path)

	changes := make(chan Config, 4)
	errs := make(chan error, 4)
	w, err := loader.Watch(ctx, func(cfg Config) { changes <- cfg }, func(err error) { errs <- err })
	require.NoError(t, err)
	defer w.Stop()

	updated := strings.Replace(minimalYAML, "reinmax-creative-cache-v1", "reinmax-creative-cache-v2", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case cfg := <-changes:
		require.Equal(t, "reinmax-creative-cache-v2", cfg.Cache.Generation)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	// an invalid edit is reported, not applied
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  generation: \"\"\n"), 0o600))
	select {
	case err := <-errs:
		require.Contains(t, err.Error(), "cache.generation")
	case cfg := <-changes:
		t.Fatalf("invalid config applied: %+v", cfg)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for validation error")
	}
}

func TestWatchRequiresFile(t *testing.T) {
	_, err := NewLoader("").Watch(context.Background(), func(Config) {}, nil)
	require.Error(t, err)

	_, err = NewLoader("", "x.yaml").Watch(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewLoader("", writeFile(t, minimalYAML)).Watch(context.Background(), func(Config) {}, nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
