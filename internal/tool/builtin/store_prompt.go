package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/bluservice/internal/promptstore"
	toolcore "github.com/harunnryd/bluservice/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("store_prompt", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &StorePromptTool{Prompts: options.Prompts}, nil
	})
}

type storePromptArgs struct {
	DocType string `json:"doc_type"`
	Prompt  string `json:"prompt"`
}

// StorePromptTool saves a prompt that worked for a document type.
type StorePromptTool struct {
	Prompts promptstore.Store
}

func (t *StorePromptTool) Name() string { return "store_prompt" }

func (t *StorePromptTool) Description() string {
	return "Store a generated prompt in the prompt store so it is reused for the document type."
}

func (t *StorePromptTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"doc_type": map[string]interface{}{
				"type":        "string",
				"description": "Type of document",
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "The prompt to store",
			},
		},
		"required": []string{"doc_type", "prompt"},
	}
}

func (t *StorePromptTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	if t.Prompts == nil {
		return "", fmt.Errorf("prompt store is not configured")
	}
	var args storePromptArgs
	if err := toolcore.DecodeArgs(input, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	if err := t.Prompts.Put(ctx, args.DocType, args.Prompt); err != nil {
		return "", err
	}
	return fmt.Sprintf("Prompt stored for %s.", strings.TrimSpace(args.DocType)), nil
}
