package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harunnryd/bluservice/internal/agent"
	"github.com/harunnryd/bluservice/internal/daemon/components"
	"github.com/harunnryd/bluservice/internal/extract"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Run a single agent turn from the terminal",
	Long:  `Sends one message through the agent loop and prints every step as it happens. Use --file to attach a document.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		filePath, _ := cmd.Flags().GetString("file")
		mimeType, _ := cmd.Flags().GetString("mime-type")

		ctx, stop := interruptContext(cmd.Context(), cmd.ErrOrStderr())
		defer stop()

		prompts := components.NewPromptStoreComponent(cfg.Store)
		if err := prompts.Init(ctx); err != nil {
			return fmt.Errorf("failed to open prompt store: %w", err)
		}
		defer prompts.Stop(context.WithoutCancel(ctx))

		agentComp := components.NewAgentComponent(cfg, prompts, nil)
		if err := agentComp.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize agent: %w", err)
		}

		var doc *agent.DocumentContext
		if filePath != "" {
			loaded, err := loadDocument(ctx, filePath, mimeType)
			if err != nil {
				return err
			}
			doc = loaded
		}
		return runChat(ctx, cmd.OutOrStdout(), agent.NewSession(agentComp.Loop()), args[0], doc)
	},
}

func loadDocument(ctx context.Context, path, mimeType string) (*agent.DocumentContext, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	extracted, err := extract.New(cfg.Extract).Text(ctx, content, mimeType)
	if err != nil {
		return nil, err
	}
	if extracted.IsImage() {
		return nil, fmt.Errorf("%s is an image; images need document storage, use the API instead", path)
	}

	return &agent.DocumentContext{
		Text:     extracted.Text,
		MimeType: extracted.MimeType,
		Filename: filepath.Base(path),
	}, nil
}

// runChat sends one message and writes a line per step event. The final answer
// goes to out on its own; an error event is returned.
func runChat(ctx context.Context, out io.Writer, session *agent.Session, message string, doc *agent.DocumentContext) error {
	events, err := session.Send(ctx, message, doc)
	if err != nil {
		return err
	}

	var final *agent.StepEvent
	for ev := range events {
		switch ev.Kind {
		case agent.KindStatus:
			fmt.Fprintf(out, "[%d/%d] thinking...\n", ev.Step, ev.MaxSteps)
		case agent.KindToolInvoked:
			args, _ := json.Marshal(ev.Arguments)
			fmt.Fprintf(out, "[%d/%d] -> %s %s\n", ev.Step, ev.MaxSteps, ev.Tool, args)
		case agent.KindToolResult:
			fmt.Fprintf(out, "[%d/%d] <- %s %s\n", ev.Step, ev.MaxSteps, ev.Tool, truncate(ev.Content, 200))
		default:
			ev := ev
			final = &ev
		}
	}

	if final == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("turn ended without an answer")
	}
	if final.Kind == agent.KindError {
		if final.Err != nil {
			return final.Err
		}
		return errors.New(final.Content)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, final.Content)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	chatCmd.Flags().String("file", "", "attach a document to the message")
	chatCmd.Flags().String("mime-type", "", "MIME type of the attached document (sniffed when empty)")
	rootCmd.AddCommand(chatCmd)
}
