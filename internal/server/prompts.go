package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
)

type PromptBody struct {
	DocType string `json:"doc_type"`
	Prompt  string `json:"prompt"`
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.opts.Prompts == nil {
		writeError(ctx, w, bluErrors.NotFound("prompt store is not configured"))
		return
	}

	docType := r.PathValue("doc_type")
	prompt, err := s.opts.Prompts.Get(ctx, docType)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, PromptBody{DocType: docType, Prompt: prompt})
}

func (s *Server) handlePutPrompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.opts.Prompts == nil {
		writeError(ctx, w, bluErrors.NotFound("prompt store is not configured"))
		return
	}

	var body PromptBody
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.Config.MaxBodyBytes))
	if err != nil {
		writeError(ctx, w, bluErrors.InvalidInput("request body too large or unreadable"))
		return
	}
	if err := json.Unmarshal(data, &body); err != nil {
		writeError(ctx, w, bluErrors.InvalidInput("malformed prompt body"))
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeError(ctx, w, bluErrors.InvalidInput("prompt is required"))
		return
	}

	docType := r.PathValue("doc_type")
	if err := s.opts.Prompts.Put(ctx, docType, body.Prompt); err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, PromptBody{DocType: docType, Prompt: body.Prompt})
}
