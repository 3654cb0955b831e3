package genstore

import (
	"context"
	"sync"
)

// LocalGenStore keeps the registry in-process.
type LocalGenStore struct {
	mu   sync.RWMutex
	gens map[string]map[string]struct{}
}

var _ GenStore = (*LocalGenStore)(nil)

func NewLocalGenStore() *LocalGenStore {
	return &LocalGenStore{gens: make(map[string]map[string]struct{})}
}

func (s *LocalGenStore) Register(_ context.Context, gen string) error {
	s.mu.Lock()
	if _, ok := s.gens[gen]; !ok {
		s.gens[gen] = make(map[string]struct{})
	}
	s.mu.Unlock()
	return nil
}

func (s *LocalGenStore) Track(_ context.Context, gen, storageKey string) error {
	s.mu.Lock()
	m, ok := s.gens[gen]
	if !ok {
		m = make(map[string]struct{})
		s.gens[gen] = m
	}
	m[storageKey] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *LocalGenStore) Members(_ context.Context, gen string) ([]string, error) {
	s.mu.RLock()
	m := s.gens[gen]
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	s.mu.RUnlock()
	return out, nil
}

// Generations acquires the read lock once and copies the names out.
func (s *LocalGenStore) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.gens))
	for g := range s.gens {
		out = append(out, g)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalGenStore) Drop(_ context.Context, gen string) error {
	s.mu.Lock()
	delete(s.gens, gen)
	s.mu.Unlock()
	return nil
}

func (s *LocalGenStore) Close(_ context.Context) error { return nil }
