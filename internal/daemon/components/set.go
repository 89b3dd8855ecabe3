package components

import (
	"github.com/harunnryd/bluservice/internal/config"
	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/model"
	"github.com/harunnryd/bluservice/internal/observability"
)

// Set is the full component graph of the service.
type Set struct {
	Tracing *TracingComponent
	Prompts *PromptStoreComponent
	Blobs   *BlobStorageComponent
	Agent   *AgentComponent
	HTTP    *HTTPServerComponent
}

// Register builds every component and adds it to d. A non-nil client replaces the
// configured model router.
func Register(d *daemon.Daemon, cfg *config.Config, metrics *observability.Metrics, client model.Client) *Set {
	set := &Set{
		Tracing: NewTracingComponent(cfg.Telemetry),
		Prompts: NewPromptStoreComponent(cfg.Store),
		Blobs:   NewBlobStorageComponent(cfg.Storage),
	}
	set.Agent = NewAgentComponent(cfg, set.Prompts, metrics).WithBlobStorage(set.Blobs)
	if client != nil {
		set.Agent.WithModelClient(client)
	}
	set.HTTP = NewHTTPServerComponent(d, cfg, HTTPDeps{
		Agent:   set.Agent,
		Prompts: set.Prompts,
		Blobs:   set.Blobs,
		Metrics: metrics,
	})

	d.AddComponent(set.Tracing)
	d.AddComponent(set.Prompts)
	d.AddComponent(set.Blobs)
	d.AddComponent(set.Agent)
	d.AddComponent(set.HTTP)
	return set
}
