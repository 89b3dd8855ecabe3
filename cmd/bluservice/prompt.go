package main

import (
	"fmt"
	"strings"

	"github.com/harunnryd/bluservice/internal/promptstore"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Manage stored extraction prompts",
	Long:  `Read and write the extraction prompt kept for each document type.`,
}

var promptGetCmd = &cobra.Command{
	Use:   "get <doc_type>",
	Short: "Print the prompt stored for a document type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := promptstore.New(cmd.Context(), cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open prompt store: %w", err)
		}
		defer store.Close()

		prompt, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prompt)
		return nil
	},
}

var promptSetCmd = &cobra.Command{
	Use:   "set <doc_type> <prompt>",
	Short: "Store the prompt for a document type",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.TrimSpace(strings.Join(args[1:], " "))
		if prompt == "" {
			return fmt.Errorf("prompt is empty")
		}

		store, err := promptstore.New(cmd.Context(), cfg.Store)
		if err != nil {
			return fmt.Errorf("failed to open prompt store: %w", err)
		}
		defer store.Close()

		if err := store.Put(cmd.Context(), args[0], prompt); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored prompt for %s\n", args[0])
		return nil
	},
}

func init() {
	promptCmd.AddCommand(promptGetCmd)
	promptCmd.AddCommand(promptSetCmd)
	rootCmd.AddCommand(promptCmd)
}
