package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("BLUDELTA_API_KEY", "")
	t.Setenv("BLUDELTA_SERVICE_URL", "")
	t.Setenv("DATABASE_URL", "")
}

func TestLoadDefaults(t *testing.T) {
	clearProviderEnv(t)

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Errorf("Expected allow-all CORS origins, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Models.Default != DefaultModelDefault {
		t.Errorf("Expected default model %s, got %s", DefaultModelDefault, cfg.Models.Default)
	}
	if len(cfg.Models.Registry) != 1 || cfg.Models.Registry[0].Provider != "openai" {
		t.Errorf("Expected a single openai registry entry, got %+v", cfg.Models.Registry)
	}
	if cfg.Agent.MaxSteps != DefaultAgentMaxSteps {
		t.Errorf("Expected default max steps %d, got %d", DefaultAgentMaxSteps, cfg.Agent.MaxSteps)
	}
	if cfg.Agent.PlanningInterval != DefaultAgentPlanningInterval {
		t.Errorf("Expected default planning interval %d, got %d", DefaultAgentPlanningInterval, cfg.Agent.PlanningInterval)
	}
	if cfg.Agent.TurnTimeout != DefaultAgentTurnTimeout {
		t.Errorf("Expected default turn timeout %s, got %s", DefaultAgentTurnTimeout, cfg.Agent.TurnTimeout)
	}
	if cfg.BluDelta.BaseURL != DefaultBluDeltaBaseURL {
		t.Errorf("Expected default bludelta url %s, got %s", DefaultBluDeltaBaseURL, cfg.BluDelta.BaseURL)
	}
	if cfg.Store.Driver != DefaultStoreDriver {
		t.Errorf("Expected default store driver %s, got %s", DefaultStoreDriver, cfg.Store.Driver)
	}
	if cfg.Store.DatabaseURL != DefaultStoreDatabaseURL {
		t.Errorf("Expected default database url %s, got %s", DefaultStoreDatabaseURL, cfg.Store.DatabaseURL)
	}
	if cfg.Storage.Driver != DefaultStorageDriver {
		t.Errorf("Expected default storage driver %s, got %s", DefaultStorageDriver, cfg.Storage.Driver)
	}
	if cfg.Extract.MaxBytes != DefaultExtractMaxBytes {
		t.Errorf("Expected default extract max bytes %d, got %d", DefaultExtractMaxBytes, cfg.Extract.MaxBytes)
	}
	if cfg.Telemetry.ServiceName != DefaultTelemetryServiceName {
		t.Errorf("Expected default service name %s, got %s", DefaultTelemetryServiceName, cfg.Telemetry.ServiceName)
	}
	if cfg.Daemon.ShutdownTimeout != DefaultDaemonShutdownTimeout {
		t.Errorf("Expected default daemon shutdown timeout %s, got %s", DefaultDaemonShutdownTimeout, cfg.Daemon.ShutdownTimeout)
	}
}

func TestLoadWithConfigFlag(t *testing.T) {
	clearProviderEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
server:
  port: 9090
models:
  default: claude
  registry:
    - name: claude
      provider: anthropic
agent:
  max_steps: 3
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("failed to load config with --config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Models.Default != "claude" {
		t.Fatalf("expected default model claude, got %s", cfg.Models.Default)
	}
	if cfg.Agent.MaxSteps != 3 {
		t.Fatalf("expected max steps 3, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.PlanningInterval != DefaultAgentPlanningInterval {
		t.Fatalf("expected planning interval default to survive, got %d", cfg.Agent.PlanningInterval)
	}
	if cfg.Models.Registry[0].APIKey != "sk-ant" {
		t.Fatalf("expected anthropic key injected from env, got %q", cfg.Models.Registry[0].APIKey)
	}
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	if _, err := Load(cmd); err == nil {
		t.Fatal("expected error when --config points to missing file")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("BLUSERVICE_AGENT__MAX_STEPS", "4")
	t.Setenv("BLUSERVICE_STORE__DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://blu@db:5432/blu")
	t.Setenv("BLUDELTA_API_KEY", "bd-key")
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Agent.MaxSteps != 4 {
		t.Errorf("expected max steps 4 from env, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("expected postgres driver from env, got %s", cfg.Store.Driver)
	}
	if cfg.Store.DatabaseURL != "postgres://blu@db:5432/blu" {
		t.Errorf("expected DATABASE_URL to override default dsn, got %s", cfg.Store.DatabaseURL)
	}
	if cfg.BluDelta.APIKey != "bd-key" {
		t.Errorf("expected bludelta api key from env, got %q", cfg.BluDelta.APIKey)
	}
	if cfg.Models.Registry[0].APIKey != "sk-openai" {
		t.Errorf("expected openai key injected, got %q", cfg.Models.Registry[0].APIKey)
	}
}

func TestLoadExpandsStorePath(t *testing.T) {
	clearProviderEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	want := filepath.Join(home, ".bluservice", "prompts.json")
	if cfg.Store.Path != want {
		t.Errorf("expected store path %s, got %s", want, cfg.Store.Path)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", DefaultAgentTurnTimeout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2m0s" {
		t.Errorf("expected 2m0s, got %s", d)
	}

	if _, err := DurationOrDefault("soon", "1s"); err == nil {
		t.Error("expected parse error for invalid duration")
	}
}

func TestDurationOrDefaultRejectsNonPositive(t *testing.T) {
	for _, v := range []string{"0s", "-5s"} {
		if _, err := DurationOrDefault(v, "1s"); err == nil {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

func TestServerTimeouts(t *testing.T) {
	timeouts, err := ServerConfig{ReadTimeout: "3s", IdleTimeout: ""}.Timeouts()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if timeouts.Read != 3*time.Second {
		t.Errorf("read timeout = %s, want 3s", timeouts.Read)
	}
	if timeouts.Write.String() != "2m30s" {
		t.Errorf("write timeout should fall back to the default, got %s", timeouts.Write)
	}

	_, err = ServerConfig{WriteTimeout: "later"}.Timeouts()
	if err == nil || !strings.Contains(err.Error(), "server.write_timeout") {
		t.Errorf("error should name the key, got %v", err)
	}
}
