package contract

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one transcript entry. An empty Content stands for a null content field.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

type CompletionRequest struct {
	Model            string    `json:"model"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
	Tools            []ToolDef `json:"tools,omitempty"`
	PlanningInterval int       `json:"planning_interval,omitempty"`
}

type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type CompletionResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// ToolCall is a tool invocation requested by the model. Raw keeps the provider's
// argument text when it could not be decoded into Arguments.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
	Raw       string                 `json:"-"`
}

// ArgumentsJSON encodes the arguments for providers that expect a JSON string.
func (c ToolCall) ArgumentsJSON() string {
	if c.Arguments == nil {
		if c.Raw != "" {
			return c.Raw
		}
		return "{}"
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Malformed reports arguments the provider sent that are not a JSON object.
func (c ToolCall) Malformed() bool {
	return c.Arguments == nil && c.Raw != ""
}

// NewToolCall decodes provider argument text into a ToolCall.
func NewToolCall(id, name, rawArguments string) ToolCall {
	call := ToolCall{ID: id, Name: name}
	args, err := DecodeArguments(rawArguments)
	if err != nil {
		call.Raw = rawArguments
		return call
	}
	call.Arguments = args
	return call
}

// DecodeArguments parses a JSON object. Blank input yields an empty map.
func DecodeArguments(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	if args == nil {
		return nil, fmt.Errorf("decode tool arguments: not a JSON object")
	}
	return args, nil
}

// SystemText returns the system instruction with the planning cadence appended.
// The cadence is advisory; nothing on this side enforces it.
func (r CompletionRequest) SystemText() string {
	if r.PlanningInterval <= 0 {
		return r.System
	}
	note := fmt.Sprintf("Planning interval: step back and revise your plan every %d steps.", r.PlanningInterval)
	if strings.TrimSpace(r.System) == "" {
		return note
	}
	return r.System + "\n\n" + note
}
