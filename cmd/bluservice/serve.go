package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/bluservice/internal/daemon"
	"github.com/harunnryd/bluservice/internal/daemon/components"
	"github.com/harunnryd/bluservice/internal/observability"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API",
	Long:  `Starts BluService as a long-running service. It serves the agent websocket, the chat and prompt endpoints, /health and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		components.Register(daemonMgr, cfg, observability.NewMetrics(), nil)

		slog.Info("BluService starting up...", "port", cfg.Server.Port, "model", cfg.Models.Default)
		err = daemonMgr.Start(cmd.Context())
		if err != nil {
			// Cancellation via signal/context is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("BluService stopped gracefully")
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("BluService stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
