package assetcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/assetcache/response"
	"github.com/unkn0wn-root/assetcache/store"
)

// Manager is one version of the asset cache: a generation plus the manifest
// that populates it. Resolve is safe for concurrent use; Install and
// Activate are meant to be driven by a single host.
type Manager struct {
	gen      string
	manifest []string
	origin   *url.URL
	store    store.Store

	fetcher        Fetcher
	log            Logger
	hooks          Hooks
	concurrency    int
	installTimeout time.Duration
	retries        int
	maxAssetBytes  int64

	installed atomic.Bool
	mu        sync.RWMutex
	cache     store.Cache // set by Install or Resume
}

var _ http.RoundTripper = (*Manager)(nil)

// Generation returns the manager's cache generation identifier.
func (m *Manager) Generation() string { return m.gen }

// Manifest returns the resolved manifest URLs in install order.
func (m *Manager) Manifest() []string { return slices.Clone(m.manifest) }

// Installed reports whether Install (or Resume) has completed successfully.
func (m *Manager) Installed() bool { return m.installed.Load() }

// Install fetches every manifest URL and, only when all of them succeeded,
// writes the snapshots into the manager's generation. Any failure returns an
// *InstallError and leaves the store as it was.
func (m *Manager) Install(ctx context.Context) error {
	start := time.Now()
	if m.installTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.installTimeout)
		defer cancel()
	}

	snaps, err := m.fetchAll(ctx)
	if err != nil {
		var ie *InstallError
		if errors.As(err, &ie) {
			return m.installFailed(ie)
		}
		return m.installFailed(&InstallError{Generation: m.gen, Err: err})
	}

	existed := m.generationExists(ctx)
	c, err := m.store.Open(ctx, m.gen)
	if err != nil {
		return m.installFailed(&InstallError{Generation: m.gen, Err: err})
	}
	for i, snap := range snaps {
		if err := c.Put(ctx, m.manifest[i], snap); err != nil {
			if !existed {
				m.rollback()
			}
			return m.installFailed(&InstallError{Generation: m.gen, URL: m.manifest[i], Err: err})
		}
	}

	m.mu.Lock()
	m.cache = c
	m.mu.Unlock()
	m.installed.Store(true)

	took := time.Since(start)
	m.log.Info("opened cache", Fields{"generation": m.gen, "entries": len(snaps), "took": took})
	m.hooks.InstallCompleted(m.gen, len(snaps), took)
	return nil
}

// Resume adopts a generation that is already present in the store, e.g.
// persisted by a previous process, without contacting the network.
// It reports false when the store does not hold the generation, or holds it
// without every manifest URL (an install that died half way).
func (m *Manager) Resume(ctx context.Context) (bool, error) {
	gens, err := m.store.ListGenerations(ctx)
	if err != nil {
		return false, fmt.Errorf("assetcache: list generations: %w", err)
	}
	if !slices.Contains(gens, m.gen) {
		return false, nil
	}
	c, err := m.store.Open(ctx, m.gen)
	if err != nil {
		return false, fmt.Errorf("assetcache: open %q: %w", m.gen, err)
	}
	for _, u := range m.manifest {
		_, ok, err := c.Get(ctx, u)
		if err != nil {
			return false, fmt.Errorf("assetcache: check %s: %w", u, err)
		}
		if !ok {
			m.log.Warn("stored generation incomplete, not resuming", Fields{"generation": m.gen, "missing": u})
			return false, nil
		}
	}
	m.mu.Lock()
	m.cache = c
	m.mu.Unlock()
	m.installed.Store(true)
	m.log.Info("resumed cache", Fields{"generation": m.gen})
	return true, nil
}

func (m *Manager) fetchAll(ctx context.Context) ([]response.Response, error) {
	snaps := make([]response.Response, len(m.manifest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, u := range m.manifest {
		g.Go(func() error {
			snap, err := m.fetch(gctx, u)
			if err != nil {
				return &InstallError{Generation: m.gen, URL: u, Err: err}
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

// fetch GETs one manifest URL. Transport errors and 5xx are retried when
// FetchRetries > 0; anything else fails at once.
func (m *Manager) fetch(ctx context.Context, u string) (response.Response, error) {
	op := func() (response.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return response.Response{}, backoff.Permanent(err)
		}
		res, err := m.fetcher.Do(req)
		if err != nil {
			return response.Response{}, err
		}
		snap, err := response.FromHTTP(u, res, m.maxAssetBytes)
		if err != nil {
			if errors.Is(err, response.ErrBodyTooLarge) {
				return response.Response{}, backoff.Permanent(err)
			}
			return response.Response{}, err
		}
		if !snap.OK() {
			err := fmt.Errorf("%w: %d", ErrBadStatus, snap.Status)
			if snap.Status < http.StatusInternalServerError {
				return response.Response{}, backoff.Permanent(err)
			}
			return response.Response{}, err
		}
		return snap, nil
	}
	if m.retries == 0 {
		snap, err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return snap, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(m.retries)+1),
	)
}

func (m *Manager) generationExists(ctx context.Context) bool {
	gens, err := m.store.ListGenerations(ctx)
	if err != nil {
		// unknown: never roll back what might predate this install
		return true
	}
	return slices.Contains(gens, m.gen)
}

func (m *Manager) rollback() {
	// the install ctx may be the reason Put failed
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.Delete(ctx, m.gen); err != nil {
		m.log.Warn("install rollback failed", Fields{"generation": m.gen, "err": err})
	}
}

func (m *Manager) installFailed(ie *InstallError) error {
	m.log.Error("install failed", Fields{"generation": ie.Generation, "url": ie.URL, "err": ie.Err})
	m.hooks.InstallFailed(ie.Generation, ie.URL, ie.Err)
	return ie
}

// Activate deletes every generation in the store except the manager's own.
// Deletions run concurrently and fail independently; failures land in
// ActivateResult.Failed and never abort the others. The returned error is
// non-nil only when the store could not list its generations.
func (m *Manager) Activate(ctx context.Context) (ActivateResult, error) {
	res := ActivateResult{Retained: m.gen, Failed: map[string]error{}}
	if !m.Installed() {
		return res, ErrNotInstalled
	}

	gens, err := m.store.ListGenerations(ctx)
	if err != nil {
		return res, fmt.Errorf("assetcache: list generations: %w", err)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, g := range gens {
		if g == m.gen {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.store.Delete(ctx, g)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[g] = err
				return
			}
			res.Deleted = append(res.Deleted, g)
		}()
	}
	wg.Wait()
	sort.Strings(res.Deleted)

	for _, g := range res.Deleted {
		m.log.Info("deleting old cache", Fields{"generation": g})
		m.hooks.StaleDeleted(g)
	}
	for g, err := range res.Failed {
		m.log.Warn("stale cache not deleted", Fields{"generation": g, "err": err})
		m.hooks.StaleDeleteFailed(g, err)
	}
	return res, nil
}

// Resolve answers req cache-first. A GET whose URL is in the current
// generation is served from the store without touching the network.
// Everything else goes to the Fetcher exactly once, and its response or
// error is returned unchanged. Misses are never written to the store.
func (m *Manager) Resolve(req *http.Request) (*http.Response, error) {
	if req.Method != "" && req.Method != http.MethodGet {
		return m.fetcher.Do(req)
	}

	key := m.cacheKey(req.URL)
	m.mu.RLock()
	c := m.cache
	m.mu.RUnlock()

	if c != nil {
		snap, ok, err := c.Get(req.Context(), key)
		if err != nil {
			m.log.Warn("cache read failed, using network", Fields{"generation": m.gen, "url": key, "err": err})
		}
		if ok {
			m.hooks.ResolveHit(key)
			return snap.HTTP(req), nil
		}
	}

	m.hooks.ResolveMiss(key)
	return m.fetcher.Do(req)
}

// RoundTrip lets a Manager sit under an http.Client.
func (m *Manager) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Resolve(req)
}
