// Package storetest holds the behaviour every store.Store must share.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"

	"github.com/unkn0wn-root/assetcache/response"
	"github.com/unkn0wn-root/assetcache/store"
)

// Snapshot builds a small 200 response for url.
func Snapshot(url, body string) response.Response {
	return response.Response{
		URL:    url,
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte(body),
	}
}

// Run exercises open, put/get, isolation between generations, listing and
// deletion against the store returned by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("OpenRejectsEmpty", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Open(context.Background(), ""); !errors.Is(err, store.ErrEmptyGeneration) {
			t.Fatalf("Open(\"\") err=%v want ErrEmptyGeneration", err)
		}
	})

	t.Run("PutGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c, err := s.Open(ctx, "v1")
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if _, ok, err := c.Get(ctx, "https://site.test/a"); err != nil || ok {
			t.Fatalf("Get on empty generation: ok=%v err=%v", ok, err)
		}
		want := Snapshot("https://site.test/a", "alpha")
		want.Header.Add("Cache-Control", "max-age=60")
		if err := c.Put(ctx, want.URL, want); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, ok, err := c.Get(ctx, want.URL)
		if err != nil || !ok {
			t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
		}
		if got.Status != want.Status || got.URL != want.URL || !bytes.Equal(got.Body, want.Body) {
			t.Fatalf("got %#v want %#v", got, want)
		}
		if !reflect.DeepEqual(got.Header, want.Header) {
			t.Fatalf("header mismatch: got %v want %v", got.Header, want.Header)
		}

		// overwrite
		if err := c.Put(ctx, want.URL, Snapshot(want.URL, "beta")); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		got, _, _ = c.Get(ctx, want.URL)
		if string(got.Body) != "beta" {
			t.Fatalf("overwrite not visible: %q", got.Body)
		}
	})

	t.Run("ReopenSeesEntries", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c1, _ := s.Open(ctx, "v1")
		if err := c1.Put(ctx, "https://site.test/", Snapshot("https://site.test/", "home")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		c2, err := s.Open(ctx, "v1")
		if err != nil {
			t.Fatalf("reopen: %v", err)
		}
		if _, ok, err := c2.Get(ctx, "https://site.test/"); err != nil || !ok {
			t.Fatalf("reopened cache lost entry: ok=%v err=%v", ok, err)
		}
	})

	t.Run("GenerationsIsolated", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		v0, _ := s.Open(ctx, "v0")
		v1, _ := s.Open(ctx, "v1")
		if err := v0.Put(ctx, "https://site.test/x", Snapshot("https://site.test/x", "old")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if _, ok, _ := v1.Get(ctx, "https://site.test/x"); ok {
			t.Fatalf("entry leaked across generations")
		}
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		for _, g := range []string{"v2", "v0", "v1"} {
			c, err := s.Open(ctx, g)
			if err != nil {
				t.Fatalf("Open %s: %v", g, err)
			}
			if err := c.Put(ctx, "https://site.test/"+g, Snapshot("https://site.test/"+g, g)); err != nil {
				t.Fatalf("Put %s: %v", g, err)
			}
		}
		gens, err := s.ListGenerations(ctx)
		if err != nil {
			t.Fatalf("ListGenerations: %v", err)
		}
		if !reflect.DeepEqual(gens, []string{"v0", "v1", "v2"}) {
			t.Fatalf("ListGenerations=%v", gens)
		}

		if err := s.Delete(ctx, "v1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		gens, _ = s.ListGenerations(ctx)
		if !reflect.DeepEqual(gens, []string{"v0", "v2"}) {
			t.Fatalf("after Delete ListGenerations=%v", gens)
		}
		c, _ := s.Open(ctx, "v1")
		if _, ok, _ := c.Get(ctx, "https://site.test/v1"); ok {
			t.Fatalf("deleted generation still serves entries")
		}
		if err := s.Delete(ctx, "never-existed"); err != nil {
			t.Fatalf("Delete unknown: %v", err)
		}
	})

	t.Run("EmptyGenerationListed", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if _, err := s.Open(ctx, "empty"); err != nil {
			t.Fatalf("Open: %v", err)
		}
		gens, _ := s.ListGenerations(ctx)
		if !reflect.DeepEqual(gens, []string{"empty"}) {
			t.Fatalf("ListGenerations=%v", gens)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		c, _ := s.Open(ctx, "v1")
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u := "https://site.test/" + string(rune('a'+i))
				if err := c.Put(ctx, u, Snapshot(u, u)); err != nil {
					t.Errorf("Put %s: %v", u, err)
					return
				}
				if _, ok, err := c.Get(ctx, u); err != nil || !ok {
					t.Errorf("Get %s: ok=%v err=%v", u, ok, err)
				}
			}(i)
		}
		wg.Wait()
	})
}
