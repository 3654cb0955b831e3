package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/assetcache"
)

type counting struct {
	assetcache.NopHooks
	mu    sync.Mutex
	hits  int
	block chan struct{}
}

func (c *counting) ResolveHit(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func TestCloseDrainsQueue(t *testing.T) {
	inner := &counting{}
	h := New(inner, 2, 100)
	for i := 0; i < 50; i++ {
		h.ResolveHit("https://site.test/")
	}
	h.Close()
	if inner.hits != 50 {
		t.Fatalf("hits=%d want 50", inner.hits)
	}
	h.ResolveHit("late")
	if h.Dropped() != 1 {
		t.Fatalf("event after Close should be dropped, dropped=%d", h.Dropped())
	}
	h.Close() // idempotent
}

func TestFullQueueDrops(t *testing.T) {
	inner := &counting{block: make(chan struct{})}
	h := New(inner, 1, 1)

	h.ResolveHit("a") // taken by the worker, which blocks
	deadline := time.Now().Add(time.Second)
	for len(h.q) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.ResolveHit("b") // fills the queue
	h.ResolveHit("c") // dropped
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d want 1", h.Dropped())
	}
	close(inner.block)
	h.Close()
	if inner.hits != 2 {
		t.Fatalf("hits=%d want 2", inner.hits)
	}
}
