package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
)

// Daemon owns the lifecycle of the service components. Components are initialized
// and started in dependency order and stopped in reverse.
type Daemon struct {
	cfg            *config.Config
	components     []Component
	startOrder     []string
	shutdownOrder  []string
	initialized    []string
	shutdownTTL    time.Duration
	healthInterval time.Duration
	health         HealthStatus
	startedAt      time.Time
	mu             sync.RWMutex
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, bluErrors.InvalidInput("daemon requires a configuration")
	}

	return &Daemon{
		cfg:        cfg,
		components: make([]Component, 0),
		health:     StatusStarting,
	}, nil
}

// AddComponent registers comp. Until the dependency order is resolved the
// shutdown order is the reverse of registration.
func (d *Daemon) AddComponent(comp Component) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = append(d.components, comp)
	d.shutdownOrder = append([]string{comp.Name()}, d.shutdownOrder...)
	slog.Debug("Component registered", "component", comp.Name(), "total_components", len(d.components))
}

// Start runs the service until ctx is cancelled or the process receives SIGINT
// or SIGTERM. It returns the cancellation cause after a graceful shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.validateConfig(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("BluService daemon starting...", "port", d.cfg.Server.Port, "components", len(d.components))

	if err := d.initializeComponents(ctx); err != nil {
		d.rollback(context.WithoutCancel(ctx))
		return fmt.Errorf("component initialization failed: %w", err)
	}

	if err := d.startComponents(ctx); err != nil {
		if shutdownErr := d.gracefulShutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			slog.Error("Shutdown after failed startup did not complete", "error", shutdownErr)
		}
		return fmt.Errorf("component startup failed: %w", err)
	}

	d.mu.Lock()
	d.health = StatusRunning
	d.startedAt = time.Now()
	d.mu.Unlock()
	slog.Info("BluService daemon is running", "components", len(d.components))

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		d.monitorHealth(ctx)
	}()

	<-ctx.Done()
	cause := ctx.Err()
	<-monitorDone

	slog.Info("Shutdown requested", "reason", cause)
	d.setHealth(StatusStopping)
	if err := d.gracefulShutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return cause
}

func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

// Uptime is the time since all components started, zero before that.
func (d *Daemon) Uptime() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.startedAt.IsZero() {
		return 0
	}
	return time.Since(d.startedAt)
}

// ComponentHealth asks every component for its health. A component that fails to
// answer is reported unhealthy with that error.
func (d *Daemon) ComponentHealth() map[string]*ComponentHealth {
	d.mu.RLock()
	components := append([]Component(nil), d.components...)
	d.mu.RUnlock()

	result := make(map[string]*ComponentHealth, len(components))
	for _, comp := range components {
		health, err := comp.Health(context.Background())
		switch {
		case err != nil:
			health = &ComponentHealth{Name: comp.Name(), Error: err}
		case health == nil:
			health = Unhealthy(comp.Name(), "no health report")
		}
		result[comp.Name()] = health
	}
	return result
}

func (d *Daemon) Component(name string) Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.getComponentByName(name)
}

func (d *Daemon) setHealth(status HealthStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health = status
}

// validateConfig checks the settings the daemon itself depends on and keeps the
// parsed durations.
func (d *Daemon) validateConfig() error {
	if d.cfg.Server.Port < 0 || d.cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 0-65535)", d.cfg.Server.Port)
	}
	if _, err := d.cfg.Server.Timeouts(); err != nil {
		return err
	}

	shutdownTTL, err := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
	if err != nil {
		return fmt.Errorf("daemon.shutdown_timeout: %w", err)
	}
	healthInterval, err := config.DurationOrDefault(d.cfg.Daemon.HealthCheckInterval, config.DefaultDaemonHealthCheckInterval)
	if err != nil {
		return fmt.Errorf("daemon.health_check_interval: %w", err)
	}

	d.mu.Lock()
	d.shutdownTTL = shutdownTTL
	d.healthInterval = healthInterval
	d.mu.Unlock()
	return nil
}

func (d *Daemon) initializeComponents(ctx context.Context) error {
	order, err := d.resolveOrder()
	if err != nil {
		return err
	}
	slog.Info("Initializing components", "order", strings.Join(order, " -> "))

	d.mu.Lock()
	d.startOrder = order
	d.shutdownOrder = reversed(order)
	d.initialized = d.initialized[:0]
	d.mu.Unlock()

	for _, comp := range d.orderedComponents() {
		if err := comp.Init(ctx); err != nil {
			slog.Error("Component initialization failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s init failed: %w", comp.Name(), err)
		}
		d.mu.Lock()
		d.initialized = append(d.initialized, comp.Name())
		d.mu.Unlock()
		slog.Debug("Component initialized", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	for _, comp := range d.orderedComponents() {
		if err := comp.Start(ctx); err != nil {
			slog.Error("Component startup failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s startup failed: %w", comp.Name(), err)
		}
		slog.Debug("Component started", "component", comp.Name())
	}
	slog.Info("All components started", "count", len(d.components))
	return nil
}

// gracefulShutdown stops every component within the configured shutdown timeout.
func (d *Daemon) gracefulShutdown(ctx context.Context) error {
	d.mu.RLock()
	ttl := d.shutdownTTL
	d.mu.RUnlock()
	if ttl <= 0 {
		ttl, _ = config.DurationOrDefault("", config.DefaultDaemonShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.shutdownComponents(shutdownCtx) }()

	select {
	case err := <-done:
		slog.Info("Graceful shutdown completed")
		return err
	case <-shutdownCtx.Done():
		slog.Error("Shutdown timeout exceeded", "timeout", ttl)
		return fmt.Errorf("shutdown timeout after %v", ttl)
	}
}

// shutdownComponents stops components in shutdown order. Stop errors are logged
// and do not keep later components running.
func (d *Daemon) shutdownComponents(ctx context.Context) error {
	d.mu.RLock()
	order := append([]string(nil), d.shutdownOrder...)
	d.mu.RUnlock()

	for _, name := range order {
		d.stopComponent(ctx, name)
	}
	d.setHealth(StatusStopped)
	return nil
}

// rollback stops the components whose Init succeeded, newest first.
func (d *Daemon) rollback(ctx context.Context) {
	d.mu.RLock()
	order := reversed(d.initialized)
	d.mu.RUnlock()

	if len(order) > 0 {
		slog.Warn("Rolling back initialized components", "components", strings.Join(order, ", "))
	}
	for _, name := range order {
		d.stopComponent(ctx, name)
	}
	d.setHealth(StatusStopped)
}

func (d *Daemon) stopComponent(ctx context.Context, name string) {
	comp := d.Component(name)
	if comp == nil {
		return
	}
	if err := comp.Stop(ctx); err != nil {
		slog.Error("Component stop failed", "component", name, "error", err)
		return
	}
	slog.Debug("Component stopped", "component", name)
}

// orderedComponents returns the components in dependency order once it is resolved,
// registration order before that.
func (d *Daemon) orderedComponents() []Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.startOrder) == 0 {
		return append([]Component(nil), d.components...)
	}
	out := make([]Component, 0, len(d.startOrder))
	for _, name := range d.startOrder {
		if comp := d.getComponentByName(name); comp != nil {
			out = append(out, comp)
		}
	}
	return out
}

// getComponentByName expects d.mu to be held by the caller or no concurrent writers.
func (d *Daemon) getComponentByName(name string) Component {
	for _, comp := range d.components {
		if comp.Name() == name {
			return comp
		}
	}
	return nil
}

func (d *Daemon) monitorHealth(ctx context.Context) {
	d.mu.RLock()
	interval := d.healthInterval
	d.mu.RUnlock()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var unhealthy []string
			for name, health := range d.ComponentHealth() {
				if !health.Healthy {
					unhealthy = append(unhealthy, name)
					slog.Warn("Component unhealthy", "component", name, "error", health.Error)
				}
			}
			if len(unhealthy) == 0 {
				slog.Debug("All components healthy", "count", len(d.components), "uptime", d.Uptime().Round(time.Second))
			}
		}
	}
}

// resolveOrder returns component names so that every component follows its
// dependencies. Unknown dependencies and cycles are errors.
func (d *Daemon) resolveOrder() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(d.components))
	order := make([]string, 0, len(d.components))

	var visit func(comp Component, path []string) error
	visit = func(comp Component, path []string) error {
		name := comp.Name()
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("circular dependency: %s", strings.Join(append(path, name), " -> "))
		}
		state[name] = visiting
		for _, dep := range comp.Dependencies() {
			next := d.getComponentByName(dep)
			if next == nil {
				return fmt.Errorf("component %s depends on %s which is not registered", name, dep)
			}
			if err := visit(next, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, comp := range d.components {
		if err := visit(comp, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func reversed(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[len(names)-1-i] = name
	}
	return out
}
