// Package storage uploads incoming documents so tools can refer to them by key.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"

	"github.com/oklog/ulid/v2"
)

const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverS3     = "s3"
)

type PutOptions struct {
	Filename string
	MimeType string
}

// Blob stores document bytes and returns the key they can be fetched with.
type Blob interface {
	Put(ctx context.Context, data []byte, opts PutOptions) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// New opens the configured backend. The none driver returns a nil Blob and uploads are skipped.
func New(ctx context.Context, cfg config.StorageConfig) (Blob, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg)
	default:
		return nil, bluErrors.InvalidInput(fmt.Sprintf("unknown storage driver: %s", cfg.Driver))
	}
}

// NewKey returns a unique, sortable key that keeps the original file name readable.
func NewKey(filename string) string {
	id := ulid.Make().String()
	name := sanitizeName(filename)
	if name == "" {
		return id
	}
	return id + "-" + name
}

func sanitizeName(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
