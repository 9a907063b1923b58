package memory

import (
	"context"
	"sync"
)

// ProfileStore is an in-memory implementation of app.ProfileStore, standing
// in for the browser's local storage in tests and adapter-less contexts.
type ProfileStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{values: make(map[string]string)}
}

func (s *ProfileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *ProfileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *ProfileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// ProfileStores hands out one store per fingerprint, so progression state
// survives across requests within a process.
type ProfileStores struct {
	mu     sync.Mutex
	stores map[string]*ProfileStore
}

func NewProfileStores() *ProfileStores {
	return &ProfileStores{stores: make(map[string]*ProfileStore)}
}

func (r *ProfileStores) For(fingerprint string) *ProfileStore {
	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.stores[fingerprint]; ok {
		return store
	}
	store := NewProfileStore()
	r.stores[fingerprint] = store
	return store
}
