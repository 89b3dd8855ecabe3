package daemon

import (
	"context"
	"fmt"
)

type HealthStatus string

const (
	StatusStarting HealthStatus = "starting"
	StatusRunning  HealthStatus = "running"
	StatusStopping HealthStatus = "stopping"
	StatusStopped  HealthStatus = "stopped"
)

// ComponentHealth is one entry of the /health report.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Error   error
}

// Healthy reports name as up.
func Healthy(name string) *ComponentHealth {
	return &ComponentHealth{Name: name, Healthy: true}
}

// Unhealthy reports name as down with the given reason.
func Unhealthy(name, format string, args ...any) *ComponentHealth {
	return &ComponentHealth{Name: name, Error: fmt.Errorf(format, args...)}
}

// Component is a unit of the service lifecycle. Dependencies name the components
// that must be initialized and started first; Stop runs in the reverse order.
type Component interface {
	Name() string
	Dependencies() []string
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) (*ComponentHealth, error)
}
