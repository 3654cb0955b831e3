package assetcache

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/unkn0wn-root/assetcache/store"
)

// Fetcher performs network requests. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configure a Manager.
// Only Generation and Store are required; others have sensible defaults.
type Options struct {
	// Required
	Generation string      // cache generation identifier, e.g. "reinmax-creative-cache-v1"
	Store      store.Store // shared by every Manager version of one site

	Manifest []string // absolute URLs, or relative ones resolved against Origin
	Origin   string   // base URL for relative manifest entries and requests

	Fetcher            Fetcher       // nil => http.DefaultClient
	Logger             Logger        // nil => NopLogger
	Hooks              Hooks         // nil => NopHooks
	InstallConcurrency int           // 0 => 6
	InstallTimeout     time.Duration // 0 => bounded only by the caller's ctx
	FetchRetries       int           // extra attempts per manifest URL; 0 => none
	MaxAssetBytes      int64         // 0 => unlimited
}

// ActivateResult describes what Activate did to the store.
type ActivateResult struct {
	Retained string           // the manager's generation
	Deleted  []string         // stale generations removed, sorted
	Failed   map[string]error // stale generations that could not be removed
}

// New validates opts and resolves the manifest. No I/O happens here.
func New(opts Options) (*Manager, error) {
	if opts.Generation == "" {
		return nil, ErrNoGeneration
	}
	if len(opts.Generation) > maxGenerationLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrGenerationTooLong, len(opts.Generation))
	}
	if opts.Store == nil {
		return nil, ErrNoStore
	}

	m := &Manager{
		gen:   opts.Generation,
		store: opts.Store,
	}

	if opts.Origin != "" {
		o, err := url.Parse(opts.Origin)
		if err != nil {
			return nil, fmt.Errorf("assetcache: origin %q: %w", opts.Origin, err)
		}
		if !o.IsAbs() {
			return nil, fmt.Errorf("assetcache: origin %q is not absolute", opts.Origin)
		}
		m.origin = o
	}

	manifest, err := m.resolveManifest(opts.Manifest)
	if err != nil {
		return nil, err
	}
	m.manifest = manifest

	// defaults
	m.fetcher = coalesce[Fetcher](opts.Fetcher, http.DefaultClient)
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.concurrency = coalesce(opts.InstallConcurrency, defaultInstallConcurrency)
	m.installTimeout = opts.InstallTimeout
	m.maxAssetBytes = opts.MaxAssetBytes
	if opts.FetchRetries > 0 {
		m.retries = opts.FetchRetries
	}
	return m, nil
}
