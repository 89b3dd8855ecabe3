package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/bluservice/internal/config"
	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/extract"
	"github.com/harunnryd/bluservice/internal/observability"
	"github.com/harunnryd/bluservice/internal/server"
)

// HTTPDeps are the components the HTTP server is built from.
type HTTPDeps struct {
	Agent   *AgentComponent
	Prompts *PromptStoreComponent
	Blobs   *BlobStorageComponent
	Metrics *observability.Metrics
}

type HTTPServerComponent struct {
	daemon      *daemon.Daemon
	cfg         *config.Config
	deps        HTTPDeps
	api         *server.Server
	server      *http.Server
	listener    net.Listener
	shutdownTTL time.Duration
	initialized bool
	started     bool
	mu          sync.RWMutex
	startTime   time.Time
}

func NewHTTPServerComponent(d *daemon.Daemon, cfg *config.Config, deps HTTPDeps) *HTTPServerComponent {
	return &HTTPServerComponent{
		daemon:      d,
		cfg:         cfg,
		deps:        deps,
		initialized: false,
		started:     false,
	}
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	return []string{"PromptStore", "BlobStorage", "Agent"}
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	api, err := server.New(server.Options{
		Config:           h.cfg.Server,
		Loop:             h.deps.Agent.Loop(),
		Model:            h.deps.Agent.Client(),
		ExtractionPrompt: h.cfg.Prompts.ExtractionSystem,
		Prompts:          h.deps.Prompts.Store(),
		Blobs:            h.deps.Blobs.Blob(),
		Extractor:        extract.New(h.cfg.Extract),
		Metrics:          h.deps.Metrics,
		Health:           h.componentHealth,
	})
	if err != nil {
		return fmt.Errorf("build api server: %w", err)
	}
	h.api = api

	timeouts, err := h.cfg.Server.Timeouts()
	if err != nil {
		return fmt.Errorf("parse server timeouts: %w", err)
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  timeouts.Read,
		WriteTimeout: timeouts.Write,
		IdleTimeout:  timeouts.Idle,
	}
	h.shutdownTTL = timeouts.Shutdown

	h.initialized = true
	slog.Info("HTTPServer initialized", "component", h.Name(), "port", h.cfg.Server.Port)
	return nil
}

func (h *HTTPServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.server.Addr, err)
	}
	h.listener = listener

	go func() {
		slog.Info("HTTP server listening", "component", h.Name(), "addr", listener.Addr().String())
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "component", h.Name(), "error", err)
		}
	}()

	h.started = true
	h.startTime = time.Now()
	slog.Info("HTTPServer started", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		slog.Info("HTTPServer not started, skipping stop", "component", h.Name())
		return nil
	}
	h.started = false
	srv, api, ttl := h.server, h.api, h.shutdownTTL
	h.mu.Unlock()

	// In-flight /health handlers read component health, so the lock is released first.
	slog.Info("Stopping HTTPServer...", "component", h.Name())
	shutdownCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	api.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", h.Name(), "error", err)
		return err
	}

	slog.Info("HTTPServer stopped", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return daemon.Unhealthy(h.Name(), "not initialized"), nil
	}
	if !h.started {
		return daemon.Unhealthy(h.Name(), "not started"), nil
	}
	return daemon.Healthy(h.Name()), nil
}

// Addr is the bound listen address once started.
func (h *HTTPServerComponent) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

func (h *HTTPServerComponent) componentHealth(ctx context.Context) map[string]server.ComponentStatus {
	out := make(map[string]server.ComponentStatus)
	if h.daemon == nil {
		return out
	}
	for name, ch := range h.daemon.ComponentHealth() {
		if ch == nil {
			continue
		}
		status := server.ComponentStatus{Healthy: ch.Healthy}
		if ch.Error != nil {
			status.Error = ch.Error.Error()
		}
		out[name] = status
	}
	return out
}
