// Package blob provides key/value storage for whole serialized documents.
package blob

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("blob not found")

// Storage persists opaque byte blobs under a key.
// Get returns ErrNotFound if nothing was stored for key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

type memoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Storage = (*memoryStorage)(nil)

func NewMemoryStorage() Storage {
	return &memoryStorage{data: make(map[string][]byte)}
}

func (s *memoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.data[key]; ok {
		return append([]byte(nil), d...), nil
	}
	return nil, ErrNotFound
}

func (s *memoryStorage) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
