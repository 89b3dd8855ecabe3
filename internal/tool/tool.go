package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/model/contract"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool represents an executable capability the model can call.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Func is the implementation signature accepted by RegisterFunc.
type Func func(ctx context.Context, args map[string]interface{}) (string, error)

type funcTool struct {
	name        string
	description string
	schema      map[string]interface{}
	fn          Func
}

func (t *funcTool) Name() string                       { return t.name }
func (t *funcTool) Description() string                { return t.description }
func (t *funcTool) Parameters() map[string]interface{} { return t.schema }
func (t *funcTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return t.fn(ctx, args)
}

// Observer receives the outcome of every invocation.
type Observer interface {
	ObserveToolInvocation(name string, duration time.Duration, err error)
}

type entry struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry holds all available tools. It is filled at startup and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]entry
	observer Observer
}

type Option func(*Registry)

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds t under its name. The parameter schema is compiled once here.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return bluErrors.InvalidInput("tool is nil")
	}
	name := NormalizeToolName(t.Name())
	if name == "" {
		return bluErrors.InvalidInput("tool name cannot be empty")
	}

	schema, err := compileSchema(name, t.Parameters())
	if err != nil {
		return bluErrors.InvalidInput(fmt.Sprintf("tool %q has an invalid parameter schema: %v", name, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return bluErrors.DuplicateTool(name)
	}
	r.tools[name] = entry{tool: t, schema: schema}
	return nil
}

// RegisterFunc registers a plain function as a tool.
func (r *Registry) RegisterFunc(name, description string, schema map[string]interface{}, fn Func) error {
	if fn == nil {
		return bluErrors.InvalidInput(fmt.Sprintf("tool %q has no implementation", name))
	}
	return r.Register(&funcTool{name: name, description: description, schema: schema, fn: fn})
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[NormalizeToolName(name)]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool schema handed to the model, sorted by name.
func (r *Registry) Definitions() []contract.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]contract.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name].tool
		defs = append(defs, contract.ToolDef{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Invoke validates args against the tool schema and runs the tool.
// Unknown names fail with ErrUnknownTool, schema mismatches with ErrInvalidArguments,
// and implementation errors or panics with ErrToolExecution.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (result string, err error) {
	name = NormalizeToolName(name)

	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", bluErrors.UnknownTool(name)
	}

	if args == nil {
		args = map[string]interface{}{}
	}
	if err := validateArgs(e.schema, args); err != nil {
		slog.Warn("Tool input validation failed", append([]any{"tool", name, "error", err}, logger.Attrs(ctx)...)...)
		r.observe(name, 0, err)
		return "", bluErrors.InvalidArguments(name, err)
	}

	start := time.Now()
	slog.Info("Executing tool", append([]any{"tool", name}, logger.Attrs(ctx)...)...)

	defer func() {
		if rec := recover(); rec != nil {
			err = bluErrors.ToolExecution(name, fmt.Errorf("panic: %v", rec))
			result = ""
		}
		duration := time.Since(start)
		r.observe(name, duration, err)
		if err != nil {
			slog.Error("Tool execution failed", append([]any{"tool", name, "error", err, "duration", duration}, logger.Attrs(ctx)...)...)
			return
		}
		slog.Info("Tool execution success", append([]any{"tool", name, "duration", duration}, logger.Attrs(ctx)...)...)
	}()

	out, execErr := e.tool.Execute(ctx, args)
	if execErr != nil {
		return "", bluErrors.ToolExecution(name, execErr)
	}
	return out, nil
}

func (r *Registry) observe(name string, d time.Duration, err error) {
	if r.observer != nil {
		r.observer.ObserveToolInvocation(name, d, err)
	}
}

func NormalizeToolName(name string) string {
	return strings.TrimSpace(name)
}
