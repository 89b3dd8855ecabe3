package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harunnryd/bluservice/internal/bludelta"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/storage"
	toolcore "github.com/harunnryd/bluservice/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("analyze_document", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &AnalyzeDocumentTool{Client: options.BluDelta, Blobs: options.Blobs}, nil
	})
	toolcore.RegisterBuiltin("get_document_info", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &DocumentInfoTool{Client: options.BluDelta}, nil
	})
}

type analyzeDocumentArgs struct {
	DocID  string `json:"doc_id"`
	Prompt string `json:"prompt"`
}

// AnalyzeDocumentTool sends an uploaded document to BluDelta with an extraction prompt.
// With Blobs set, the document must have been uploaded through this service.
type AnalyzeDocumentTool struct {
	Client *bludelta.Client
	Blobs  storage.Blob
}

func (t *AnalyzeDocumentTool) Name() string { return "analyze_document" }

func (t *AnalyzeDocumentTool) Description() string {
	return "Send an uploaded document to the BluDelta service for analysis with a custom prompt."
}

func (t *AnalyzeDocumentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"doc_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the uploaded document",
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "Custom prompt to use for analysis",
			},
		},
		"required": []string{"doc_id", "prompt"},
	}
}

func (t *AnalyzeDocumentTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	if t.Client == nil {
		return "", fmt.Errorf("bludelta client is not configured")
	}
	var args analyzeDocumentArgs
	if err := toolcore.DecodeArgs(input, &args); err != nil {
		return "", err
	}
	if t.Blobs != nil {
		ok, err := t.Blobs.Exists(ctx, args.DocID)
		if err != nil {
			return "", fmt.Errorf("check document %s: %w", args.DocID, err)
		}
		if !ok {
			return "", bluErrors.NotFound(fmt.Sprintf("document %s was not uploaded", args.DocID))
		}
	}
	result, err := t.Client.Analyze(ctx, args.DocID, args.Prompt)
	if err != nil {
		return "", err
	}
	return encodeResult(result)
}

type documentInfoArgs struct {
	DocID string `json:"doc_id"`
}

// DocumentInfoTool fetches the metadata BluDelta keeps for a document.
type DocumentInfoTool struct {
	Client *bludelta.Client
}

func (t *DocumentInfoTool) Name() string { return "get_document_info" }

func (t *DocumentInfoTool) Description() string {
	return "Get document metadata from the BluDelta service."
}

func (t *DocumentInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"doc_id": map[string]interface{}{
				"type":        "string",
				"description": "ID of the uploaded document",
			},
		},
		"required": []string{"doc_id"},
	}
}

func (t *DocumentInfoTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	if t.Client == nil {
		return "", fmt.Errorf("bludelta client is not configured")
	}
	var args documentInfoArgs
	if err := toolcore.DecodeArgs(input, &args); err != nil {
		return "", err
	}
	info, err := t.Client.DocumentInfo(ctx, args.DocID)
	if err != nil {
		return "", err
	}
	return encodeResult(info)
}

func encodeResult(v map[string]interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}
