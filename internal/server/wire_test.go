package server

import (
	"encoding/json"
	"testing"

	"github.com/harunnryd/bluservice/internal/agent"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileContentDecoding(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []byte
		wantErr bool
	}{
		{"base64 string", `"aGVsbG8="`, []byte("hello"), false},
		{"unpadded base64", `"aGVsbG8"`, []byte("hello"), false},
		{"data url", `"data:text/plain;base64,aGVsbG8="`, []byte("hello"), false},
		{"byte array", `[104,101,108,108,111]`, []byte("hello"), false},
		{"null", `null`, nil, false},
		{"invalid base64", `"***"`, nil, true},
		{"byte out of range", `[256]`, nil, true},
		{"wrong type", `42`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload struct {
				Content FileContent `json:"content"`
			}
			err := json.Unmarshal([]byte(`{"content":`+tt.raw+`}`), &payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, []byte(payload.Content))
		})
	}
}

func TestDecodeChatRequest(t *testing.T) {
	req, err := decodeChatRequest([]byte(`{"content":"hi","file":{"content":[1,2],"type":"application/pdf","name":"a.pdf"}}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", req.Content)
	require.NotNil(t, req.File)
	assert.Equal(t, FileContent{1, 2}, req.File.Content)
	assert.Equal(t, "a.pdf", req.File.Name)

	_, err = decodeChatRequest([]byte(`{"content":"hi","file":{"content":"%%%"}}`))
	assert.ErrorIs(t, err, bluErrors.ErrInvalidInput)
}

func TestOutboundFromEvent(t *testing.T) {
	lookup := "lookup"
	tests := []struct {
		name string
		ev   agent.StepEvent
		want Outbound
	}{
		{
			name: "status",
			ev:   agent.StepEvent{Step: 1, Kind: agent.KindStatus, MaxSteps: 6},
			want: Outbound{Type: OutboundStatus, Content: "Processing step 1", Metadata: &StepMetadata{Step: 1, TotalSteps: 6}},
		},
		{
			name: "tool invoked",
			ev:   agent.StepEvent{Step: 2, Kind: agent.KindToolInvoked, MaxSteps: 6, Tool: "lookup"},
			want: Outbound{Type: OutboundStatus, Content: "Processing step 2", Metadata: &StepMetadata{Step: 2, Tool: &lookup, TotalSteps: 6}},
		},
		{
			name: "final answer",
			ev:   agent.StepEvent{Step: 3, Kind: agent.KindFinalAnswer, Content: "done"},
			want: Outbound{Type: OutboundMessage, Role: "assistant", Content: "done"},
		},
		{
			name: "error",
			ev:   agent.StepEvent{Step: 3, Kind: agent.KindError, Content: "step budget exceeded", Category: bluErrors.CategoryStepBudgetExceeded},
			want: Outbound{Type: OutboundError, Content: "step budget exceeded", Category: bluErrors.CategoryStepBudgetExceeded},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outboundFromEvent(tt.ev))
		})
	}
}

func TestStatusFrameShape(t *testing.T) {
	data, err := json.Marshal(outboundFromEvent(agent.StepEvent{Step: 4, Kind: agent.KindStatus, MaxSteps: 6}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status","content":"Processing step 4","metadata":{"step":4,"tool":null,"total_steps":6}}`, string(data))
}
