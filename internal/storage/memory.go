package storage

import (
	"context"
	"sync"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
)

type MemoryBlob struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

func NewMemory() *MemoryBlob {
	return &MemoryBlob{objects: make(map[string][]byte)}
}

func (m *MemoryBlob) Put(ctx context.Context, data []byte, opts PutOptions) (string, error) {
	key := NewKey(opts.Filename)
	copied := append([]byte(nil), data...)

	m.mu.Lock()
	m.objects[key] = copied
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryBlob) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, bluErrors.NotFound("document " + key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlob) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryBlob) Close() error {
	return nil
}
