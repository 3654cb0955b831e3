package genstore

import (
	"context"
)

// GenStore tracks which cache generations exist and which provider keys each
// one owns. Byte providers cannot enumerate their keyspace, so the provider
// store leans on a GenStore for ListGenerations and Delete.
// Use LocalGenStore for a single process, RedisGenStore when the provider is
// shared or must survive restarts.
type GenStore interface {
	// Register records gen as existing. Registering twice is a no-op.
	Register(ctx context.Context, gen string) error
	// Track records that storageKey belongs to gen.
	Track(ctx context.Context, gen, storageKey string) error
	// Members returns the keys tracked for gen (unordered).
	Members(ctx context.Context, gen string) ([]string, error)
	// Generations returns every registered generation (unordered).
	Generations(ctx context.Context) ([]string, error)
	// Drop forgets gen and its members. Dropping an unknown gen is a no-op.
	Drop(ctx context.Context, gen string) error
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
