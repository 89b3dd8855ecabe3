package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/bluservice/internal/agent"
	"github.com/harunnryd/bluservice/internal/bludelta"
	"github.com/harunnryd/bluservice/internal/config"
	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/model"
	"github.com/harunnryd/bluservice/internal/observability"
	"github.com/harunnryd/bluservice/internal/tool"
	_ "github.com/harunnryd/bluservice/internal/tool/builtin"
)

// AgentComponent wires the model router, the tool registry and the agent loop.
// The registry is frozen after Init and shared by every session.
type AgentComponent struct {
	cfg         *config.Config
	prompts     *PromptStoreComponent
	blobs       *BlobStorageComponent
	metrics     *observability.Metrics
	client      model.Client
	router      *model.Router
	registry    *tool.Registry
	loop        *agent.Loop
	initialized bool
	mu          sync.RWMutex
}

func NewAgentComponent(cfg *config.Config, prompts *PromptStoreComponent, metrics *observability.Metrics) *AgentComponent {
	return &AgentComponent{cfg: cfg, prompts: prompts, metrics: metrics}
}

// WithBlobStorage lets document tools check that a document id was uploaded here.
func (a *AgentComponent) WithBlobStorage(blobs *BlobStorageComponent) *AgentComponent {
	a.blobs = blobs
	return a
}

// WithModelClient replaces the configured router, mostly for tests.
func (a *AgentComponent) WithModelClient(client model.Client) *AgentComponent {
	a.client = client
	return a
}

func (a *AgentComponent) Name() string {
	return "Agent"
}

func (a *AgentComponent) Dependencies() []string {
	if a.blobs != nil {
		return []string{"PromptStore", "BlobStorage"}
	}
	return []string{"PromptStore"}
}

func (a *AgentComponent) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	client := a.client
	if client == nil {
		var routerOpts []model.RouterOption
		if a.metrics != nil {
			routerOpts = append(routerOpts, model.WithObserver(a.metrics))
		}
		router, err := model.NewRouter(ctx, a.cfg.Models, routerOpts...)
		if err != nil {
			return fmt.Errorf("create model router: %w", err)
		}
		a.router = router
		client = router
	}

	bluTimeout, err := config.DurationOrDefault(a.cfg.BluDelta.Timeout, config.DefaultBluDeltaTimeout)
	if err != nil {
		return fmt.Errorf("parse bludelta timeout: %w", err)
	}

	var registryOpts []tool.Option
	if a.metrics != nil {
		registryOpts = append(registryOpts, tool.WithObserver(a.metrics))
	}
	builtinOpts := tool.BuiltinOptions{
		Prompts:  a.prompts.Store(),
		BluDelta: bludelta.New(a.cfg.BluDelta.BaseURL, a.cfg.BluDelta.APIKey, bluTimeout),
	}
	if a.blobs != nil {
		builtinOpts.Blobs = a.blobs.Blob()
	}
	registry := tool.NewRegistry(registryOpts...)
	if err := tool.RegisterBuiltins(registry, builtinOpts); err != nil {
		return fmt.Errorf("register builtin tools: %w", err)
	}

	settings, err := agent.SettingsFromConfig(a.cfg.Agent, a.cfg.Models.Default)
	if err != nil {
		return fmt.Errorf("agent settings: %w", err)
	}

	var loopOpts []agent.LoopOption
	if a.metrics != nil {
		loopOpts = append(loopOpts, agent.WithTurnObserver(a.metrics))
	}
	a.client = client
	a.registry = registry
	a.loop = agent.NewLoop(client, registry, settings, loopOpts...)
	a.initialized = true

	slog.Info("Agent initialized", "component", a.Name(), "model", settings.Model, "max_steps", settings.MaxSteps, "tools", registry.Names())
	return nil
}

func (a *AgentComponent) Start(ctx context.Context) error {
	return nil
}

func (a *AgentComponent) Stop(ctx context.Context) error {
	return nil
}

func (a *AgentComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.initialized {
		return daemon.Unhealthy(a.Name(), "not initialized"), nil
	}
	if a.router != nil && len(a.router.ListModels()) == 0 {
		return daemon.Unhealthy(a.Name(), "no models configured"), nil
	}
	return daemon.Healthy(a.Name()), nil
}

func (a *AgentComponent) Loop() *agent.Loop {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loop
}

func (a *AgentComponent) Client() model.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

func (a *AgentComponent) Registry() *tool.Registry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.registry
}
