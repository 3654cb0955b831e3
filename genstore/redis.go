package genstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisGenStore shares the registry across processes and survives restarts.
//
// Keys:
//
//	gens:<ns>       - SET of generation identifiers
//	gen:<ns>:<gen>  - SET of provider keys owned by <gen>
type RedisGenStore struct {
	rdb redis.UniversalClient
	ns  string // logical namespace; should match the store namespace
}

var _ GenStore = (*RedisGenStore)(nil)

func NewRedisGenStore(client redis.UniversalClient, namespace string) *RedisGenStore {
	return &RedisGenStore{rdb: client, ns: namespace}
}

func (s *RedisGenStore) gensKey() string { return "gens:" + s.ns }
func (s *RedisGenStore) genKey(gen string) string { return "gen:" + s.ns + ":" + gen }

func (s *RedisGenStore) Register(ctx context.Context, gen string) error {
	return s.rdb.SAdd(ctx, s.gensKey(), gen).Err()
}

// Track registers gen as well, so a crash between Register and the first
// Track cannot leave members behind an unlisted generation.
func (s *RedisGenStore) Track(ctx context.Context, gen, storageKey string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, s.gensKey(), gen)
		p.SAdd(ctx, s.genKey(gen), storageKey)
		return nil
	})
	return err
}

func (s *RedisGenStore) Members(ctx context.Context, gen string) ([]string, error) {
	return s.rdb.SMembers(ctx, s.genKey(gen)).Result()
}

func (s *RedisGenStore) Generations(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, s.gensKey()).Result()
}

// Drop removes the member set and the registry entry in one MULTI.
func (s *RedisGenStore) Drop(ctx context.Context, gen string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.genKey(gen))
		p.SRem(ctx, s.gensKey(), gen)
		return nil
	})
	return err
}

// Close closes the underlying Redis client.
func (s *RedisGenStore) Close(ctx context.Context) error { return s.rdb.Close() }
