// Package store is the generation-keyed Cache Store: a set of named cache
// generations, each mapping a request URL to a response snapshot.
//
// Implementations:
//   - NewMemory: in-process maps.
//   - NewProviderStore: any provider.Provider plus a genstore.GenStore registry.
//   - store/sqlite: a persistent database file.
package store

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/assetcache/response"
)

var (
	// ErrRejected is returned by Put when the backing store refused the write
	// (eviction pressure, admission policy).
	ErrRejected = errors.New("store: write rejected")
	// ErrEmptyGeneration is returned by Open for an empty identifier.
	ErrEmptyGeneration = errors.New("store: empty generation")
)

// Store owns every cache generation. All methods must be safe for concurrent use.
type Store interface {
	// Open returns the cache for gen, creating it when absent.
	Open(ctx context.Context, gen string) (Cache, error)
	// Delete removes gen and all of its entries. Deleting an unknown gen returns nil.
	Delete(ctx context.Context, gen string) error
	// ListGenerations returns every generation present, sorted ascending.
	ListGenerations(ctx context.Context) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// Cache is one generation.
type Cache interface {
	// Put stores r under url, replacing any previous entry.
	Put(ctx context.Context, url string, r response.Response) error
	// Get returns (r, true, nil) on hit and (zero, false, nil) on miss.
	Get(ctx context.Context, url string) (response.Response, bool, error)
}
