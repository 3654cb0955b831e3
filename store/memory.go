package store

import (
	"context"
	"sort"
	"sync"

	"github.com/unkn0wn-root/assetcache/response"
)

type memoryStore struct {
	mu   sync.RWMutex
	gens map[string]*memoryCache
}

// NewMemory returns a Store held entirely in process memory.
func NewMemory() Store {
	return &memoryStore{gens: make(map[string]*memoryCache)}
}

func (s *memoryStore) Open(_ context.Context, gen string) (Cache, error) {
	if gen == "" {
		return nil, ErrEmptyGeneration
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.gens[gen]
	if !ok {
		c = &memoryCache{entries: make(map[string]response.Response)}
		s.gens[gen] = c
	}
	return c, nil
}

func (s *memoryStore) Delete(_ context.Context, gen string) error {
	s.mu.Lock()
	c, ok := s.gens[gen]
	delete(s.gens, gen)
	s.mu.Unlock()
	if ok {
		// handles still held by a retired manager read as empty
		c.mu.Lock()
		c.entries = make(map[string]response.Response)
		c.mu.Unlock()
	}
	return nil
}

func (s *memoryStore) ListGenerations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.gens))
	for g := range s.gens {
		out = append(out, g)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) Close(_ context.Context) error { return nil }

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]response.Response
}

func (c *memoryCache) Put(_ context.Context, url string, r response.Response) error {
	c.mu.Lock()
	c.entries[url] = r.Clone()
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Get(_ context.Context, url string) (response.Response, bool, error) {
	c.mu.RLock()
	r, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok {
		return response.Response{}, false, nil
	}
	return r.Clone(), true, nil
}
