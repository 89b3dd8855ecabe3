package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/promptstore"
	toolcore "github.com/harunnryd/bluservice/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("generate_prompt", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &GeneratePromptTool{Prompts: options.Prompts}, nil
	})
}

type generatePromptArgs struct {
	DocType string                 `json:"doc_type"`
	Context map[string]interface{} `json:"context"`
}

// GeneratePromptTool builds an extraction prompt for a document type, preferring a stored one.
type GeneratePromptTool struct {
	Prompts promptstore.Store
}

func (t *GeneratePromptTool) Name() string { return "generate_prompt" }

func (t *GeneratePromptTool) Description() string {
	return "Generate a custom extraction prompt for a document type (for example invoice, receipt, contract)."
}

func (t *GeneratePromptTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"doc_type": map[string]interface{}{
				"type":        "string",
				"description": "Type of document (e.g. invoice, receipt, contract)",
			},
			"context": map[string]interface{}{
				"type":        "object",
				"description": "Optional additional context about the document",
			},
		},
		"required": []string{"doc_type"},
	}
}

func (t *GeneratePromptTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	var args generatePromptArgs
	if err := toolcore.DecodeArgs(input, &args); err != nil {
		return "", err
	}
	docType := strings.TrimSpace(args.DocType)
	if docType == "" {
		return "", fmt.Errorf("doc_type is required")
	}

	if t.Prompts != nil {
		stored, err := t.Prompts.Get(ctx, docType)
		switch {
		case err == nil:
			return fillPlaceholders(stored, args.Context), nil
		case errors.Is(err, bluErrors.ErrNotFound):
		default:
			return "", err
		}
	}

	prompt := fmt.Sprintf("You are analyzing a %s. Extract all relevant information.", docType)
	if len(args.Context) > 0 {
		encoded, err := json.Marshal(args.Context)
		if err != nil {
			return "", fmt.Errorf("encode context: %w", err)
		}
		prompt += "\nAdditional context: " + string(encoded)
	}
	return prompt, nil
}

// fillPlaceholders replaces {key} with the matching context value. Unknown placeholders stay as written.
func fillPlaceholders(template string, values map[string]interface{}) string {
	if len(values) == 0 {
		return template
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(values[k]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
