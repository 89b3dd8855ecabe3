// Package bludelta is the HTTP client for the BluDelta document analysis service.
package bludelta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
)

const (
	DefaultTimeout  = 60 * time.Second
	maxResponseSize = 4 << 20
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	DocID  string `json:"doc_id"`
	Prompt string `json:"prompt"`
}

// Analyze sends the document to the analysis endpoint with an extraction prompt.
func (c *Client) Analyze(ctx context.Context, docID, prompt string) (map[string]interface{}, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, bluErrors.InvalidInput("doc_id is required")
	}
	body, err := json.Marshal(analyzeRequest{DocID: docID, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/analyze", body)
}

// DocumentInfo returns the metadata the service keeps for a document.
func (c *Client) DocumentInfo(ctx context.Context, docID string) (map[string]interface{}, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, bluErrors.InvalidInput("doc_id is required")
	}
	return c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(docID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (map[string]interface{}, error) {
	if c.BaseURL == "" {
		return nil, bluErrors.Internal("bludelta base url is not configured")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bludelta %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read bludelta response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, bluErrors.NotFound(fmt.Sprintf("bludelta %s", path))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("bludelta request failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	out := map[string]interface{}{}
	if len(bytes.TrimSpace(payload)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode bludelta response: %w", err)
	}
	return out, nil
}
