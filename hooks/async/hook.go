// Package asynchook moves Hooks calls off the request path.
//
// usage:
//
//	raw := loghooks.New(slog.Default(), loghooks.Options{ResolveEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	m, _ := assetcache.New(assetcache.Options{
//	    Generation: "reinmax-creative-cache-v1",
//	    Store:      store.NewMemory(),
//	    Hooks:      hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/assetcache"
)

// Hooks queues every event for a pool of workers. When the queue is full
// the event is dropped and counted.
type Hooks struct {
	inner   assetcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ assetcache.Hooks = (*Hooks)(nil)

func New(inner assetcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) InstallCompleted(g string, n int, d time.Duration) {
	h.try(func() { h.inner.InstallCompleted(g, n, d) })
}
func (h *Hooks) InstallFailed(g, u string, err error) {
	h.try(func() { h.inner.InstallFailed(g, u, err) })
}
func (h *Hooks) StaleDeleted(g string) { h.try(func() { h.inner.StaleDeleted(g) }) }
func (h *Hooks) StaleDeleteFailed(g string, err error) {
	h.try(func() { h.inner.StaleDeleteFailed(g, err) })
}
func (h *Hooks) ResolveHit(u string)       { h.try(func() { h.inner.ResolveHit(u) }) }
func (h *Hooks) ResolveMiss(u string)      { h.try(func() { h.inner.ResolveMiss(u) }) }
func (h *Hooks) SelfHeal(k, reason string) { h.try(func() { h.inner.SelfHeal(k, reason) }) }
