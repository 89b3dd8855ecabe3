package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/harunnryd/bluservice/internal/agent"
	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/model"
	"github.com/harunnryd/bluservice/internal/observability"
	"github.com/harunnryd/bluservice/internal/promptstore"
	"github.com/harunnryd/bluservice/internal/storage"

	"github.com/gorilla/websocket"
)

// ComponentStatus is the health of one daemon component as reported on /health.
type ComponentStatus struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type HealthFunc func(ctx context.Context) map[string]ComponentStatus

type Options struct {
	Config config.ServerConfig
	// Loop runs chat turns. Every connection and chat request gets its own session.
	Loop *agent.Loop
	// Model and ExtractionPrompt serve /process.
	Model            model.Client
	ExtractionPrompt string
	Prompts          promptstore.Store
	Blobs            storage.Blob
	Extractor        Extractor
	Metrics          *observability.Metrics
	Health           HealthFunc
	Version          string
}

type Server struct {
	opts     Options
	docs     *documentPreparer
	notify   *notifyHub
	upgrader websocket.Upgrader
}

func New(opts Options) (*Server, error) {
	if opts.Loop == nil {
		return nil, bluErrors.InvalidInput("server requires an agent loop")
	}
	if opts.Extractor == nil {
		return nil, bluErrors.InvalidInput("server requires a document extractor")
	}
	if opts.Config.MaxBodyBytes <= 0 {
		opts.Config.MaxBodyBytes = config.DefaultServerMaxBodyBytes
	}
	if opts.ExtractionPrompt == "" {
		opts.ExtractionPrompt = config.DefaultExtractionSystemPrompt
	}
	if opts.Version == "" {
		opts.Version = observability.Version
	}

	s := &Server{
		opts:   opts,
		docs:   &documentPreparer{extractor: opts.Extractor, blobs: opts.Blobs},
		notify: newNotifyHub(opts.Metrics),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(opts.Config.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the request middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/agent/chat", s.handleChat)
	mux.HandleFunc("GET /api/agent/ws", s.handleAgentWS)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /ws", s.handleNotifyWS)
	mux.HandleFunc("GET /api/prompts/{doc_type}", s.handleGetPrompt)
	mux.HandleFunc("PUT /api/prompts/{doc_type}", s.handlePutPrompt)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}

	var h http.Handler = mux
	h = requestMiddleware(s.opts.Metrics)(h)
	h = corsMiddleware(s.opts.Config.AllowedOrigins)(h)
	return h
}

// Close drops all notification subscribers.
func (s *Server) Close() {
	s.notify.closeAll()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": s.opts.Version,
	}
	if s.opts.Health != nil {
		components := s.opts.Health(r.Context())
		for _, c := range components {
			if !c.Healthy {
				resp["status"] = "degraded"
				break
			}
		}
		resp["components"] = components
	}
	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", append([]any{"error", err}, logger.Attrs(ctx)...)...)
	}
}

// writeError renders err as {"detail": msg} with the status its category maps to.
// errorMapper files errors from stores and SDKs under a category so they get a
// meaningful status code.
var errorMapper bluErrors.ErrorMapper = bluErrors.NewDefaultErrorMapper()

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	err = errorMapper.MapError(err)
	status := bluErrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", append([]any{"category", bluErrors.Category(err), "error", err}, logger.Attrs(ctx)...)...)
	}
	writeJSON(ctx, w, status, map[string]string{"detail": err.Error()})
}
