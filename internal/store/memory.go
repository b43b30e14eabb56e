package store

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when no artifact is stored under a key.
	ErrNotFound = errors.New("no cached artifact for key")
)

// MemoryStore is a concurrency-safe in-memory blob store. It lives as
// long as the process and is mostly useful for tests and throwaway runs.
type MemoryStore struct {
	mu sync.RWMutex

	// key: artifact key, value: encoded artifact
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the artifact stored under key.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data under key, replacing any previous artifact.
func (s *MemoryStore) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes the artifact under key. Deleting a missing key is a no-op.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
