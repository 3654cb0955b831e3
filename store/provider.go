package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	c "github.com/unkn0wn-root/assetcache/codec"
	gen "github.com/unkn0wn-root/assetcache/genstore"
	"github.com/unkn0wn-root/assetcache/internal/util"
	"github.com/unkn0wn-root/assetcache/internal/wire"
	pr "github.com/unkn0wn-root/assetcache/provider"
	"github.com/unkn0wn-root/assetcache/response"
)

// SetCostFunc computes the admission cost passed to Provider.Set.
type SetCostFunc func(storageKey string, raw []byte) int64

// ProviderOptions configures NewProviderStore.
// Only Namespace and Provider are required; others have sensible defaults.
type ProviderOptions struct {
	// Required
	Namespace string // isolates several sites sharing one provider, e.g. "reinmax"
	Provider  pr.Provider

	Codec          c.Codec[response.Response] // nil => Msgpack
	GenStore       gen.GenStore               // nil => LocalGenStore (in-process)
	ComputeSetCost SetCostFunc                // nil => len(raw)

	// SelfHeal is called when Get finds an undecodable or misplaced entry and
	// deletes it. reason ∈ {"corrupt", "gen_mismatch", "url_mismatch", "value_decode"}.
	SelfHeal func(storageKey, reason string)
	// HealFailed is called when deleting such an entry fails. The entry stays
	// and keeps reading as a miss until a delete succeeds.
	HealFailed func(storageKey, reason string, err error)
}

type providerStore struct {
	ns       string
	provider pr.Provider
	codec    c.Codec[response.Response]
	gens     gen.GenStore
	cost     SetCostFunc
	selfHeal func(string, string)
	healErr  func(string, string, error)
}

// NewProviderStore layers generations over a flat byte provider.
//
// Keys:
//
//	entry:<ns>:<gen>:<sha256(url)[:16]>  - one framed snapshot per URL
func NewProviderStore(opts ProviderOptions) (Store, error) {
	if opts.Provider == nil {
		return nil, errors.New("store: provider is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("store: namespace is required")
	}
	s := &providerStore{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		gens:     opts.GenStore,
		cost:     opts.ComputeSetCost,
		selfHeal: opts.SelfHeal,
		healErr:  opts.HealFailed,
	}
	if s.codec == nil {
		s.codec = c.Msgpack[response.Response]{}
	}
	if s.gens == nil {
		s.gens = gen.NewLocalGenStore()
	}
	if s.cost == nil {
		s.cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
	}
	if s.selfHeal == nil {
		s.selfHeal = func(string, string) {}
	}
	if s.healErr == nil {
		s.healErr = func(string, string, error) {}
	}
	return s, nil
}

func (s *providerStore) prefix() string { return "entry:" + s.ns }

func (s *providerStore) Open(ctx context.Context, g string) (Cache, error) {
	if g == "" {
		return nil, ErrEmptyGeneration
	}
	if len(g) > wire.MaxFieldLen {
		return nil, fmt.Errorf("store: open %.64s: %w", g, wire.ErrTooLong)
	}
	if err := s.gens.Register(ctx, g); err != nil {
		return nil, fmt.Errorf("store: register %q: %w", g, err)
	}
	return &providerCache{s: s, gen: g}, nil
}

// Delete removes every tracked entry first and forgets the generation only if
// all of them are gone, so a partial failure is retried by the next Delete.
func (s *providerStore) Delete(ctx context.Context, g string) error {
	keys, err := s.gens.Members(ctx, g)
	if err != nil {
		return fmt.Errorf("store: members of %q: %w", g, err)
	}
	var errs error
	for _, k := range keys {
		errs = multierr.Append(errs, s.provider.Del(ctx, k))
	}
	if errs != nil {
		return fmt.Errorf("store: delete %q: %w", g, errs)
	}
	if err := s.gens.Drop(ctx, g); err != nil {
		return fmt.Errorf("store: drop %q: %w", g, err)
	}
	return nil
}

func (s *providerStore) ListGenerations(ctx context.Context) ([]string, error) {
	gens, err := s.gens.Generations(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(gens)
	return gens, nil
}

// Close releases the registry first (best effort), then the provider.
func (s *providerStore) Close(ctx context.Context) error {
	return multierr.Combine(s.gens.Close(ctx), s.provider.Close(ctx))
}

type providerCache struct {
	s   *providerStore
	gen string
}

func (pc *providerCache) Put(ctx context.Context, url string, r response.Response) error {
	payload, err := pc.s.codec.Encode(r)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", url, err)
	}
	raw, err := wire.EncodeEntry(pc.gen, url, payload)
	if err != nil {
		return fmt.Errorf("store: frame %.64s: %w", url, err)
	}
	k := util.EntryKey(pc.s.prefix(), pc.gen, url)

	// track before writing so Delete can always find what was written
	if err := pc.s.gens.Track(ctx, pc.gen, k); err != nil {
		return fmt.Errorf("store: track %s: %w", url, err)
	}
	ok, err := pc.s.provider.Set(ctx, k, raw, pc.s.cost(k, raw))
	if err != nil {
		return fmt.Errorf("store: put %s: %w", url, err)
	}
	if !ok {
		return fmt.Errorf("store: put %s: %w", url, ErrRejected)
	}
	return nil
}

func (pc *providerCache) Get(ctx context.Context, url string) (response.Response, bool, error) {
	k := util.EntryKey(pc.s.prefix(), pc.gen, url)
	raw, ok, err := pc.s.provider.Get(ctx, k)
	if err != nil || !ok {
		return response.Response{}, false, err
	}
	g, u, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		pc.heal(ctx, k, "corrupt")
		return response.Response{}, false, nil
	}
	if g != pc.gen {
		pc.heal(ctx, k, "gen_mismatch")
		return response.Response{}, false, nil
	}
	if u != url {
		pc.heal(ctx, k, "url_mismatch")
		return response.Response{}, false, nil
	}
	r, err := pc.s.codec.Decode(payload)
	if err != nil {
		pc.heal(ctx, k, "value_decode")
		return response.Response{}, false, nil
	}
	return r, true, nil
}

func (pc *providerCache) heal(ctx context.Context, storageKey, reason string) {
	if err := pc.s.provider.Del(ctx, storageKey); err != nil {
		pc.s.healErr(storageKey, reason, err)
		return
	}
	pc.s.selfHeal(storageKey, reason)
}
