package catalog

import (
	"context"
	"sync"
)

type MemStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemStore(seed []byte) *MemStore {
	s := &MemStore{}
	if seed != nil {
		s.data = append([]byte(nil), seed...)
	}
	return s
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Read(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemStore) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
	return nil
}
