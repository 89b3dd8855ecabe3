package model

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/model/contract"
	anthropicProvider "github.com/harunnryd/bluservice/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/bluservice/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/bluservice/internal/model/providers/openai"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/harunnryd/bluservice/internal/model"

type routedProvider struct {
	provider     Provider
	providerType string
}

// Router resolves a model id to its configured provider. Failures are never
// retried or rerouted; they surface as ErrProvider.
type Router struct {
	defaultModel string
	providers    map[string]routedProvider
	observer     Observer
	tracer       trace.Tracer
	mu           sync.RWMutex
}

type RouterOption func(*Router)

func WithObserver(o Observer) RouterOption {
	return func(r *Router) { r.observer = o }
}

// NewRouter creates a router with one provider per registry entry.
func NewRouter(ctx context.Context, cfg config.ModelsConfig, opts ...RouterOption) (*Router, error) {
	router := &Router{
		defaultModel: cfg.Default,
		providers:    make(map[string]routedProvider),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(router)
	}

	for _, entry := range cfg.Registry {
		provider, err := createProvider(ctx, entry)
		if err != nil {
			slog.Warn("Failed to create provider", "provider", entry.Provider, "model", entry.Name, "error", err)
			continue
		}
		router.Register(entry.Name, entry.Provider, provider)
		slog.Info("Provider initialized", "name", entry.Name, "type", entry.Provider)
	}

	if len(router.providers) == 0 && len(cfg.Registry) > 0 {
		return nil, bluErrors.Internal("no providers initialized")
	}

	return router, nil
}

// Register adds or replaces the provider serving model.
func (r *Router) Register(model, providerType string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[model] = routedProvider{provider: p, providerType: providerType}
}

// Complete sends req to the provider that serves req.Model, or the default model when empty.
func (r *Router) Complete(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}

	select {
	case <-ctx.Done():
		return nil, bluErrors.Wrap(ctx.Err(), "model request cancelled")
	default:
	}

	r.mu.RLock()
	routed, exists := r.providers[req.Model]
	r.mu.RUnlock()
	if !exists {
		return nil, bluErrors.Provider("router", bluErrors.NotFound(fmt.Sprintf("model %s not configured", req.Model)))
	}

	ctx, span := r.tracer.Start(ctx, "model.complete", trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("llm.provider", routed.providerType),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Int("llm.tools", len(req.Tools)),
	))
	defer span.End()

	attrs := append([]any{"model", req.Model, "provider", routed.providerType}, logger.Attrs(ctx)...)
	slog.Debug("Routing completion request", attrs...)

	start := time.Now()
	resp, err := routed.provider.Generate(ctx, req)
	elapsed := time.Since(start)

	var usage contract.Usage
	if resp != nil {
		usage = resp.Usage
	}
	if r.observer != nil {
		r.observer.ObserveModelCall(routed.providerType, req.Model, elapsed, usage, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Provider request failed", append(attrs, "duration_ms", elapsed.Milliseconds(), "error", err)...)
		return nil, bluErrors.Provider(routed.providerType, err)
	}

	span.SetAttributes(
		attribute.Int("llm.tool_calls", len(resp.ToolCalls)),
		attribute.Int("llm.prompt_tokens", usage.PromptTokens),
		attribute.Int("llm.completion_tokens", usage.CompletionTokens),
	)
	slog.Info("Request completed", append(attrs, "duration_ms", elapsed.Milliseconds(), "tool_calls", len(resp.ToolCalls))...)
	return resp, nil
}

// ListModels returns all registered model names
func (r *Router) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.providers))
	for name := range r.providers {
		models = append(models, name)
	}
	sort.Strings(models)
	return models
}

// createProvider creates a provider instance based on registry entry
func createProvider(ctx context.Context, entry config.ModelRegistry) (Provider, error) {
	timeout, err := config.DurationOrDefault(entry.RequestTimeout, config.DefaultModelRequestTimeout)
	if err != nil {
		return nil, bluErrors.InvalidInput(fmt.Sprintf("invalid request_timeout for model %s: %v", entry.Name, err))
	}

	switch entry.Provider {
	case "openai":
		if entry.APIKey == "" {
			return nil, bluErrors.InvalidInput("API key required for OpenAI provider")
		}
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}
		return openaiProvider.New(entry.Name, openaiProvider.Options{APIKey: entry.APIKey, BaseURL: baseURL, Timeout: timeout}), nil

	case "azure":
		if entry.APIKey == "" || entry.BaseURL == "" {
			return nil, bluErrors.InvalidInput("API key and base_url required for Azure OpenAI provider")
		}
		return openaiProvider.New(entry.Name, openaiProvider.Options{
			APIKey:     entry.APIKey,
			BaseURL:    entry.BaseURL,
			Azure:      true,
			APIVersion: entry.APIVersion,
			Timeout:    timeout,
		}), nil

	case "ollama":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOllamaBaseURL
		}
		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = config.DefaultOllamaAPIKey
		}
		return openaiProvider.New(entry.Name, openaiProvider.Options{APIKey: apiKey, BaseURL: baseURL, Timeout: timeout}), nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, bluErrors.InvalidInput("API key required for Anthropic provider")
		}
		maxTokens := entry.MaxTokens
		if maxTokens <= 0 {
			maxTokens = config.DefaultModelMaxOutputTokens
		}
		return anthropicProvider.New(entry.Name, entry.APIKey, maxTokens), nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, bluErrors.InvalidInput("API key required for Gemini provider")
		}
		provider, err := geminiProvider.New(ctx, entry.Name, entry.APIKey)
		if err != nil {
			return nil, bluErrors.WrapWithCategory(err, "failed to create Gemini provider", bluErrors.ErrInternal)
		}
		return provider, nil

	default:
		return nil, bluErrors.InvalidInput(fmt.Sprintf("unknown provider type: %s", entry.Provider))
	}
}
