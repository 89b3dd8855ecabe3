package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/bluservice/internal/config"
	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/storage"
)

// BlobStorageComponent opens the uploaded-document storage. With the "none"
// driver it stays healthy and exposes a nil Blob.
type BlobStorageComponent struct {
	cfg         config.StorageConfig
	blob        storage.Blob
	initialized bool
	mu          sync.RWMutex
}

func NewBlobStorageComponent(cfg config.StorageConfig) *BlobStorageComponent {
	return &BlobStorageComponent{cfg: cfg}
}

func (b *BlobStorageComponent) Name() string {
	return "BlobStorage"
}

func (b *BlobStorageComponent) Dependencies() []string {
	return []string{}
}

func (b *BlobStorageComponent) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	blob, err := storage.New(ctx, b.cfg)
	if err != nil {
		return fmt.Errorf("open blob storage: %w", err)
	}
	b.blob = blob
	b.initialized = true
	slog.Info("BlobStorage initialized", "component", b.Name(), "driver", b.cfg.Driver, "enabled", blob != nil)
	return nil
}

func (b *BlobStorageComponent) Start(ctx context.Context) error {
	return nil
}

func (b *BlobStorageComponent) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil
	}
	b.initialized = false
	if b.blob == nil {
		return nil
	}
	return b.blob.Close()
}

func (b *BlobStorageComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return daemon.Unhealthy(b.Name(), "not initialized"), nil
	}
	return daemon.Healthy(b.Name()), nil
}

func (b *BlobStorageComponent) Blob() storage.Blob {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blob
}
