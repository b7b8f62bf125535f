package store

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	exports map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{exports: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, id string, export []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[id] = dup(export)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	export, ok := s.exports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return dup(export), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.exports, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
