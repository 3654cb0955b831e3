package valkey

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/unkn0wn-root/assetcache/internal/providertest"
)

func TestValkeyProvider(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer srv.Close()

	p, err := New(Config{Address: srv.Addr()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close(context.Background())

	providertest.Run(t, p)
}

func TestValkeyProviderRequiresAddress(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without address")
	}
}
