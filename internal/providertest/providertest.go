// Package providertest holds the behaviour every provider.Provider must share.
package providertest

import (
	"bytes"
	"context"
	"testing"

	pr "github.com/unkn0wn-root/assetcache/provider"
)

// Run exercises miss, set/get transparency, overwrite and delete against p.
func Run(t *testing.T, p pr.Provider) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := p.Get(ctx, "entry:t:v1:missing"); err != nil || ok {
		t.Fatalf("Get on missing key: ok=%v err=%v", ok, err)
	}

	val := []byte{0, 'A', 'S', 'W', 'C', 0xFF, '\n'}
	ok, err := p.Set(ctx, "entry:t:v1:k", val, int64(len(val)))
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	got, ok, err := p.Get(ctx, "entry:t:v1:k")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, val) {
		t.Fatalf("provider not byte-transparent: got %x want %x", got, val)
	}

	if ok, err := p.Set(ctx, "entry:t:v1:k", []byte("second"), 6); err != nil || !ok {
		t.Fatalf("overwrite: ok=%v err=%v", ok, err)
	}
	if got, _, _ := p.Get(ctx, "entry:t:v1:k"); string(got) != "second" {
		t.Fatalf("overwrite not visible: %q", got)
	}

	if err := p.Del(ctx, "entry:t:v1:k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, err := p.Get(ctx, "entry:t:v1:k"); err != nil || ok {
		t.Fatalf("Get after Del: ok=%v err=%v", ok, err)
	}
	if err := p.Del(ctx, "entry:t:v1:k"); err != nil {
		t.Fatalf("Del of missing key should be nil, got %v", err)
	}
}
