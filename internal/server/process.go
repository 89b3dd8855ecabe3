package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/model/contract"
)

const processSuccessMessage = "Processing completed successfully"

type ProcessResponse struct {
	Message         string `json:"message"`
	GeneratedPrompt string `json:"generated_prompt"`
}

// handleProcess asks the model for an extraction prompt tailored to the uploaded
// document and the caller's instructions. Subscribers on /ws are told the outcome.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prompt, err := s.process(w, r)
	if err != nil {
		s.notify.broadcast(Notification{Status: "error", Message: err.Error()})
		writeError(ctx, w, err)
		return
	}

	s.notify.broadcast(Notification{Status: "success", Message: "Prompt generated successfully"})
	writeJSON(ctx, w, http.StatusOK, ProcessResponse{Message: processSuccessMessage, GeneratedPrompt: prompt})
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) (string, error) {
	ctx := r.Context()
	if s.opts.Model == nil {
		return "", bluErrors.Internal("no model configured for prompt generation")
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.Config.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.opts.Config.MaxBodyBytes); err != nil {
		return "", bluErrors.InvalidInput(fmt.Sprintf("invalid multipart form: %v", err))
	}
	instruction := strings.TrimSpace(r.FormValue("instruction_text"))
	if instruction == "" {
		return "", bluErrors.InvalidInput("instruction_text is required")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", bluErrors.InvalidInput("file is required")
		}
		return "", bluErrors.InvalidInput(fmt.Sprintf("read file: %v", err))
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return "", bluErrors.InvalidInput(fmt.Sprintf("read file: %v", err))
	}

	doc, err := s.opts.Extractor.Text(ctx, content, header.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return "", bluErrors.InvalidInput("no text could be extracted from the file")
	}

	slog.Info("Generating extraction prompt", append([]any{"filename", header.Filename, "mime_type", doc.MimeType}, logger.Attrs(ctx)...)...)

	resp, err := s.opts.Model.Complete(ctx, contract.CompletionRequest{
		Model:  s.opts.Loop.Settings().Model,
		System: s.opts.ExtractionPrompt,
		Messages: []contract.Message{{
			Role:    contract.RoleUser,
			Content: extractionRequest(doc.Text, instruction),
		}},
	})
	if err != nil {
		if bluErrors.Category(err) == bluErrors.CategoryUnknown {
			err = bluErrors.Provider("model", err)
		}
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func extractionRequest(document, instruction string) string {
	return fmt.Sprintf("Create an extraction prompt for the following document content: %s\nBased on these instructions: %s", document, instruction)
}
