package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/bluservice/internal/agent"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/model/contract"
)

// ChatRequest is the inbound message of both the websocket and the chat endpoint.
type ChatRequest struct {
	Content string       `json:"content"`
	Role    string       `json:"role,omitempty"`
	File    *FilePayload `json:"file,omitempty"`
}

type FilePayload struct {
	Content FileContent `json:"content"`
	Type    string      `json:"type"`
	Name    string      `json:"name,omitempty"`
}

// FileContent holds decoded file bytes. On the wire it is either a base64 string
// or an array of byte values.
type FileContent []byte

func (c *FileContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	switch data[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(data, &encoded); err != nil {
			return err
		}
		decoded, err := decodeBase64(encoded)
		if err != nil {
			return fmt.Errorf("file content is not valid base64: %w", err)
		}
		*c = decoded
		return nil

	case '[':
		var values []int
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("file content array: %w", err)
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return fmt.Errorf("file content byte %d out of range: %d", i, v)
			}
			out[i] = byte(v)
		}
		*c = out
		return nil

	default:
		return fmt.Errorf("file content must be a base64 string or a byte array")
	}
}

func (c FileContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(c))
}

// decodeBase64 accepts padded and unpadded input, and strips a data URL prefix.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (r ChatRequest) validate() error {
	if r.Role != "" && r.Role != contract.RoleUser {
		return bluErrors.InvalidInput(fmt.Sprintf("unsupported role: %s", r.Role))
	}
	if strings.TrimSpace(r.Content) == "" {
		return bluErrors.InvalidInput("message content is empty")
	}
	return nil
}

func decodeChatRequest(data []byte) (ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ChatRequest{}, bluErrors.InvalidInput(fmt.Sprintf("malformed message: %v", err))
	}
	if err := req.validate(); err != nil {
		return ChatRequest{}, err
	}
	return req, nil
}

// Outbound is one websocket frame sent to the client.
type Outbound struct {
	Type     string        `json:"type"`
	Role     string        `json:"role,omitempty"`
	Content  string        `json:"content"`
	Category string        `json:"category,omitempty"`
	Metadata *StepMetadata `json:"metadata,omitempty"`
}

type StepMetadata struct {
	Step       int     `json:"step"`
	Tool       *string `json:"tool"`
	TotalSteps int     `json:"total_steps"`
}

const (
	OutboundStatus  = "status"
	OutboundMessage = "message"
	OutboundError   = "error"
)

func outboundFromEvent(ev agent.StepEvent) Outbound {
	switch ev.Kind {
	case agent.KindFinalAnswer:
		return Outbound{Type: OutboundMessage, Role: contract.RoleAssistant, Content: ev.Content}
	case agent.KindError:
		return Outbound{Type: OutboundError, Content: ev.Content, Category: ev.Category}
	default:
		meta := &StepMetadata{Step: ev.Step, TotalSteps: ev.MaxSteps}
		if ev.Tool != "" {
			tool := ev.Tool
			meta.Tool = &tool
		}
		return Outbound{
			Type:     OutboundStatus,
			Content:  fmt.Sprintf("Processing step %d", ev.Step),
			Metadata: meta,
		}
	}
}

func outboundError(err error) Outbound {
	return Outbound{Type: OutboundError, Content: err.Error(), Category: bluErrors.Category(err)}
}
