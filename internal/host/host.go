// Package host drives Manager versions for the daemon the way a browser
// drives a service worker: it installs a version, activates it, routes every
// request through the active one and rolls to a new version when the
// configuration changes.
package host

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/unkn0wn-root/assetcache"
	"github.com/unkn0wn-root/assetcache/internal/config"
	"github.com/unkn0wn-root/assetcache/store"
)

// ErrNothingInstalled is returned by Activate when no version is waiting.
var ErrNothingInstalled = errors.New("host: no installed version waiting for activation")

// Options wire a Host. Store is required.
type Options struct {
	Store   store.Store
	Fetcher assetcache.Fetcher // nil => http.DefaultClient
	Logger  assetcache.Logger  // nil => NopLogger
	Hooks   assetcache.Hooks   // nil => NopHooks
	// OnActivate runs after a version starts serving.
	OnActivate func(generation string)
}

// Host owns the active Manager and at most one installed-but-waiting one.
type Host struct {
	opts Options
	log  assetcache.Logger

	mu         sync.Mutex // serialises lifecycle transitions
	cfg        config.CacheConfig
	waiting    *assetcache.Manager
	waitingCfg config.CacheConfig

	active atomic.Pointer[assetcache.Manager]
	served atomic.Pointer[config.CacheConfig]
}

func New(opts Options, cfg config.CacheConfig) (*Host, error) {
	if opts.Store == nil {
		return nil, errors.New("host: store is required")
	}
	if opts.Fetcher == nil {
		opts.Fetcher = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = assetcache.NopLogger{}
	}
	h := &Host{opts: opts, log: opts.Logger, cfg: cfg}
	h.served.Store(&cfg)
	return h, nil
}

// Active returns the serving manager, or nil before the first activation.
func (h *Host) Active() *assetcache.Manager { return h.active.Load() }

// Config returns the configuration of the serving version, or the initial
// one before the first activation. It never waits on a running install.
func (h *Host) Config() config.CacheConfig { return *h.served.Load() }

func (h *Host) newManager(cfg config.CacheConfig) (*assetcache.Manager, error) {
	return assetcache.New(assetcache.Options{
		Generation:         cfg.Generation,
		Store:              h.opts.Store,
		Manifest:           cfg.Manifest,
		Origin:             cfg.Origin,
		Fetcher:            h.opts.Fetcher,
		Logger:             h.opts.Logger,
		Hooks:              h.opts.Hooks,
		InstallConcurrency: cfg.Concurrency,
		InstallTimeout:     cfg.InstallTimeout,
		FetchRetries:       cfg.FetchRetries,
		MaxAssetBytes:      cfg.MaxAssetBytes,
	})
}

// Install builds a version from the current configuration and installs it.
// On success it waits for Activate; the active version keeps serving either way.
func (h *Host) Install(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.install(ctx)
}

func (h *Host) install(ctx context.Context) (string, error) {
	m, err := h.newManager(h.cfg)
	if err != nil {
		return "", errors.Wrap(err, "build cache version")
	}

	if h.cfg.Resume && h.active.Load() == nil {
		ok, err := m.Resume(ctx)
		if err != nil {
			h.log.Warn("resume failed, installing", assetcache.Fields{"generation": m.Generation(), "err": err})
		}
		if ok {
			h.waiting, h.waitingCfg = m, h.cfg
			return m.Generation(), nil
		}
	}

	if err := m.Install(ctx); err != nil {
		return "", errors.Wrapf(err, "install %s", m.Generation())
	}
	h.waiting, h.waitingCfg = m, h.cfg
	return m.Generation(), nil
}

// Activate promotes the waiting version: it starts serving at once, then
// every other generation is removed from the store.
func (h *Host) Activate(ctx context.Context) (assetcache.ActivateResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activate(ctx)
}

func (h *Host) activate(ctx context.Context) (assetcache.ActivateResult, error) {
	m := h.waiting
	if m == nil {
		return assetcache.ActivateResult{}, ErrNothingInstalled
	}
	h.waiting = nil
	cfg := h.waitingCfg

	h.served.Store(&cfg)
	prev := h.active.Swap(m)
	if prev == nil || prev.Generation() != m.Generation() {
		h.log.Info("cache version active", assetcache.Fields{"generation": m.Generation()})
	}
	if h.opts.OnActivate != nil {
		h.opts.OnActivate(m.Generation())
	}

	res, err := m.Activate(ctx)
	if err != nil {
		return res, errors.Wrapf(err, "activate %s", m.Generation())
	}
	return res, nil
}

// Deploy installs and activates the configured version.
func (h *Host) Deploy(ctx context.Context) (assetcache.ActivateResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.install(ctx); err != nil {
		return assetcache.ActivateResult{}, err
	}
	return h.activate(ctx)
}

// Reload adopts cfg and deploys it when it describes a different version
// (generation, origin or manifest). A failed deploy keeps the old version
// serving and the old configuration in place.
func (h *Host) Reload(ctx context.Context, cfg config.CacheConfig) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.cfg
	h.cfg = cfg
	if sameVersion(prev, cfg) && h.active.Load() != nil {
		return false, nil
	}
	if prev.Generation == cfg.Generation && !slices.Equal(prev.Manifest, cfg.Manifest) {
		h.log.Warn("manifest changed under the same generation; entries are overwritten in place",
			assetcache.Fields{"generation": cfg.Generation})
	}

	if _, err := h.install(ctx); err != nil {
		h.cfg = prev
		return false, err
	}
	if _, err := h.activate(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func sameVersion(a, b config.CacheConfig) bool {
	return a.Generation == b.Generation && a.Origin == b.Origin && slices.Equal(a.Manifest, b.Manifest)
}

// Generations lists what the store currently holds.
func (h *Host) Generations(ctx context.Context) ([]string, error) {
	gens, err := h.opts.Store.ListGenerations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list generations")
	}
	return gens, nil
}

// Resolve routes req through the active version, or straight to the network
// before anything has been activated.
func (h *Host) Resolve(req *http.Request) (*http.Response, error) {
	if m := h.active.Load(); m != nil {
		return m.Resolve(req)
	}
	return h.opts.Fetcher.Do(req)
}
