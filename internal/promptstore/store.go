// Package promptstore keeps the extraction prompt text stored per document type.
package promptstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Store maps a document type to its prompt text. Concurrent writes to the same
// document type are serialized and the last writer wins.
type Store interface {
	// Get returns ErrNotFound when no prompt is stored for docType.
	Get(ctx context.Context, docType string) (string, error)
	Put(ctx context.Context, docType, prompt string) error
	Close() error
}

// New opens the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	lockTimeout, err := config.DurationOrDefault(cfg.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, bluErrors.InvalidInput(fmt.Sprintf("invalid store.lock_timeout: %v", err))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		return NewFile(cfg.Path, lockTimeout)
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL, cfg.MaxOpenConns)
	default:
		return nil, bluErrors.InvalidInput(fmt.Sprintf("unknown store driver: %s", cfg.Driver))
	}
}

func normalizeKey(docType string) (string, error) {
	key := strings.TrimSpace(docType)
	if key == "" {
		return "", bluErrors.InvalidInput("doc_type is required")
	}
	return key, nil
}

func notFound(docType string) error {
	return bluErrors.NotFound(fmt.Sprintf("no prompt stored for %q", docType))
}
