package promptstore

import (
	"context"
	"sync"

	"github.com/harunnryd/bluservice/internal/concurrency"
)

type MemoryStore struct {
	prompts map[string]string
	mu      sync.RWMutex
	keys    *concurrency.KeyedLocker
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		prompts: make(map[string]string),
		keys:    concurrency.NewKeyedLocker(),
	}
}

func (s *MemoryStore) Get(ctx context.Context, docType string) (string, error) {
	key, err := normalizeKey(docType)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	prompt, ok := s.prompts[key]
	if !ok {
		return "", notFound(key)
	}
	return prompt, nil
}

func (s *MemoryStore) Put(ctx context.Context, docType, prompt string) error {
	key, err := normalizeKey(docType)
	if err != nil {
		return err
	}
	return s.keys.With(key, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		s.prompts[key] = prompt
		s.mu.Unlock()
		return nil
	})
}

func (s *MemoryStore) Close() error {
	return nil
}
