package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/bluservice/internal/config"
	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/promptstore"
)

type PromptStoreComponent struct {
	cfg         config.StoreConfig
	store       promptstore.Store
	initialized bool
	mu          sync.RWMutex
}

func NewPromptStoreComponent(cfg config.StoreConfig) *PromptStoreComponent {
	return &PromptStoreComponent{cfg: cfg}
}

func (p *PromptStoreComponent) Name() string {
	return "PromptStore"
}

func (p *PromptStoreComponent) Dependencies() []string {
	return []string{}
}

func (p *PromptStoreComponent) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("PromptStore init cancelled: %w", ctx.Err())
	default:
	}

	store, err := promptstore.New(ctx, p.cfg)
	if err != nil {
		return fmt.Errorf("open prompt store: %w", err)
	}
	p.store = store
	p.initialized = true
	slog.Info("PromptStore initialized", "component", p.Name(), "driver", p.cfg.Driver)
	return nil
}

func (p *PromptStoreComponent) Start(ctx context.Context) error {
	return nil
}

func (p *PromptStoreComponent) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}
	p.initialized = false
	if err := p.store.Close(); err != nil {
		return fmt.Errorf("close prompt store: %w", err)
	}
	slog.Info("PromptStore stopped", "component", p.Name())
	return nil
}

func (p *PromptStoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return daemon.Unhealthy(p.Name(), "not initialized"), nil
	}
	return daemon.Healthy(p.Name()), nil
}

// Store returns the opened store, or nil before Init.
func (p *PromptStoreComponent) Store() promptstore.Store {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store
}
