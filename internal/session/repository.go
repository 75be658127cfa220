package session

import (
	"context"
	"sync"
)

// Repository stores encrypted session blobs keyed by identity hash.
//
// Load returns (nil, nil) when no blob exists. Delete of a missing blob is
// not an error.
type Repository interface {
	Load(ctx context.Context, hash string) ([]byte, error)
	Save(ctx context.Context, hash string, blob []byte) error
	Delete(ctx context.Context, hash string) error
}

// MemoryRepository keeps blobs in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{blobs: make(map[string][]byte)}
}

func (m *MemoryRepository) Load(_ context.Context, hash string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[hash]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryRepository) Save(_ context.Context, hash string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[hash] = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, hash)
	return nil
}
