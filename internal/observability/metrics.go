package observability

import (
	"net/http"
	"strconv"
	"time"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/model/contract"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects provider, tool, turn and transport metrics on a private registry.
//
// It satisfies model.Observer, tool.Observer and agent.TurnObserver so the same
// value can be handed to the router, the tool registry and the agent loop.
type Metrics struct {
	registry *prometheus.Registry

	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// Labels: tool_name, status (success|error), category
	ToolExecutionCounter  *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Labels: outcome (done|failed|cancelled), category
	TurnCounter    *prometheus.CounterVec
	TurnDuration   *prometheus.HistogramVec
	TurnModelCalls prometheus.Histogram

	// Labels: transport (ws|notify)
	ActiveConnections *prometheus.GaugeVec

	// Labels: method, route, status_code
	HTTPRequestCounter *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LLMRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluservice_llm_requests_total",
				Help: "Total number of model requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bluservice_llm_request_duration_seconds",
				Help:    "Duration of model requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMTokensUsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluservice_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluservice_tool_executions_total",
				Help: "Total number of tool invocations by tool, status, and error category",
			},
			[]string{"tool_name", "status", "category"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bluservice_tool_execution_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		TurnCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluservice_agent_turns_total",
				Help: "Total number of agent turns by outcome and error category",
			},
			[]string{"outcome", "category"},
		),
		TurnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bluservice_agent_turn_duration_seconds",
				Help:    "Duration of agent turns in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		TurnModelCalls: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bluservice_agent_turn_model_calls",
				Help:    "Number of model calls made per agent turn",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
			},
		),

		ActiveConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bluservice_active_connections",
				Help: "Number of open websocket connections by transport",
			},
			[]string{"transport"},
		),

		HTTPRequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bluservice_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status_code"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LLMRequestCounter,
		m.LLMRequestDuration,
		m.LLMTokensUsed,
		m.ToolExecutionCounter,
		m.ToolExecutionDuration,
		m.TurnCounter,
		m.TurnDuration,
		m.TurnModelCalls,
		m.ActiveConnections,
		m.HTTPRequestCounter,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveModelCall(provider, model string, duration time.Duration, usage contract.Usage, err error) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status(err)).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if usage.PromptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(usage.CompletionTokens))
	}
}

func (m *Metrics) ObserveToolInvocation(name string, duration time.Duration, err error) {
	category := ""
	if err != nil {
		category = bluErrors.Category(err)
	}
	m.ToolExecutionCounter.WithLabelValues(name, status(err), category).Inc()
	m.ToolExecutionDuration.WithLabelValues(name).Observe(duration.Seconds())
}

func (m *Metrics) ObserveTurn(outcome, category string, modelCalls int, duration time.Duration) {
	m.TurnCounter.WithLabelValues(outcome, category).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	m.TurnModelCalls.Observe(float64(modelCalls))
}

// ConnectionOpened increments the open connection gauge; the returned func decrements it.
func (m *Metrics) ConnectionOpened(transport string) func() {
	g := m.ActiveConnections.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}

func (m *Metrics) ObserveHTTPRequest(method, route string, statusCode int) {
	m.HTTPRequestCounter.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
