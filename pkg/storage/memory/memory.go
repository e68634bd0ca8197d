package memory

import (
	"context"
	"sync"

	"github.com/tinysense/sensord/pkg/storage"
)

// Store keeps documents in memory. Data is lost on restart.
// Useful for testing and development.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New creates an in-memory store.
func New() *Store {
	return &Store{
		docs: make(map[string][]byte),
	}
}

// Write stores a copy of data under key.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.docs[key] = buf
	return nil
}

// Read returns a copy of the document stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Close is a no-op for memory storage.
func (s *Store) Close() error {
	return nil
}
