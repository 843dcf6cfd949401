package hostconfig

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	app  map[string]string
	user map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory config store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		app:  map[string]string{},
		user: map[string]map[string]string{},
	}
}

func (s *MemoryStore) GetAppValue(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.app[key], nil
}

func (s *MemoryStore) SetAppValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app[key] = value
	return nil
}

func (s *MemoryStore) GetUserValue(_ context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user[userID][key], nil
}

func (s *MemoryStore) SetUserValue(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user[userID] == nil {
		s.user[userID] = map[string]string{}
	}
	s.user[userID][key] = value
	return nil
}

func (s *MemoryStore) DeleteUserValue(_ context.Context, userID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.user[userID], key)
	return nil
}
