package components

import (
	"context"
	"fmt"
	"sync"

	"github.com/harunnryd/bluservice/internal/config"
	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/observability"
)

type TracingComponent struct {
	cfg      config.TelemetryConfig
	shutdown observability.ShutdownFunc
	mu       sync.Mutex
}

func NewTracingComponent(cfg config.TelemetryConfig) *TracingComponent {
	return &TracingComponent{cfg: cfg}
}

func (t *TracingComponent) Name() string {
	return "Tracing"
}

func (t *TracingComponent) Dependencies() []string {
	return []string{}
}

func (t *TracingComponent) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	shutdown, err := observability.SetupTracing(ctx, t.cfg)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	t.shutdown = shutdown
	return nil
}

func (t *TracingComponent) Start(ctx context.Context) error {
	return nil
}

func (t *TracingComponent) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown == nil {
		return nil
	}
	err := t.shutdown(ctx)
	t.shutdown = nil
	return err
}

func (t *TracingComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return daemon.Healthy(t.Name()), nil
}
