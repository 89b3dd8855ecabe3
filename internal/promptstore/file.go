package promptstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/harunnryd/bluservice/internal/pathutil"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

const fileLockRetry = 25 * time.Millisecond

type promptFile struct {
	Prompts map[string]string `json:"prompts"`
}

// FileStore keeps prompts in a JSON file. Writers hold a process mutex and an
// advisory file lock, so several processes may share one file.
type FileStore struct {
	path        string
	lockTimeout time.Duration
	lock        *flock.Flock
	mu          sync.Mutex
}

func NewFile(path string, lockTimeout time.Duration) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required for the file driver")
	}
	path, err := pathutil.EnsureParent(path)
	if err != nil {
		return nil, fmt.Errorf("prepare store path: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &FileStore{
		path:        path,
		lockTimeout: lockTimeout,
		lock:        flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Get(ctx context.Context, docType string) (string, error) {
	key, err := normalizeKey(docType)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return "", err
	}
	prompt, ok := state.Prompts[key]
	if !ok {
		return "", notFound(key)
	}
	return prompt, nil
}

func (s *FileStore) Put(ctx context.Context, docType, prompt string) error {
	key, err := normalizeKey(docType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, fileLockRetry)
	if err != nil {
		return fmt.Errorf("acquire prompt store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("prompt store %s is locked by another process", s.path)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			slog.Error("Failed to release prompt store lock", "path", s.path, "error", err)
		}
	}()

	// Another process may have written since our last read.
	state, err := s.load()
	if err != nil {
		return err
	}
	state.Prompts[key] = prompt
	return s.save(state)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() (*promptFile, error) {
	state := &promptFile{Prompts: make(map[string]string)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prompt store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode prompt store: %w", err)
	}
	if state.Prompts == nil {
		state.Prompts = make(map[string]string)
	}
	return state, nil
}

func (s *FileStore) save(state *promptFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}
