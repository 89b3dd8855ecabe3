package agent

import (
	"context"
	"testing"
	"time"

	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSession_SendRejectsEmptyContent(t *testing.T) {
	client := new(MockModelClient)
	registry, _ := newRegistry(t, okLookup)
	session := NewSession(NewLoop(client, registry, testSettings(6)))

	_, err := session.Send(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bluErrors.ErrInvalidInput)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	assert.Empty(t, session.History())
}

func TestSession_CommitsUserAndAnswer(t *testing.T) {
	client := new(MockModelClient)
	registry, _ := newRegistry(t, okLookup)
	client.On("Complete", mock.Anything, mock.Anything).Return(&contract.CompletionResponse{Content: "first answer"}, nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req contract.CompletionRequest) bool {
		return len(req.Messages) == 3 && req.Messages[1].Content == "first answer"
	})).Return(&contract.CompletionResponse{Content: "second answer"}, nil).Once()

	session := NewSession(NewLoop(client, registry, testSettings(6)))
	assert.NotEmpty(t, session.ID())

	events, err := session.Send(context.Background(), "one", nil)
	require.NoError(t, err)
	assertWellFormed(t, collect(t, events))

	events, err = session.Send(context.Background(), "two", nil)
	require.NoError(t, err)
	got := collect(t, events)
	assert.Equal(t, "second answer", got[len(got)-1].Content)

	history := session.History()
	require.Len(t, history, 4)
	assert.Equal(t, []string{"one", "first answer", "two", "second answer"}, []string{history[0].Content, history[1].Content, history[2].Content, history[3].Content})

	history[0].Content = "mutated"
	assert.Equal(t, "one", session.History()[0].Content)

	session.Clear()
	assert.Empty(t, session.History())
	client.AssertExpectations(t)
}

func TestSession_FailedTurnKeepsOnlyUserMessage(t *testing.T) {
	client := new(MockModelClient)
	registry, _ := newRegistry(t, okLookup)
	client.On("Complete", mock.Anything, mock.Anything).Return(nil, bluErrors.Provider("openai", assert.AnError)).Once()

	session := NewSession(NewLoop(client, registry, testSettings(6)))
	events, err := session.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	got := collect(t, events)
	assert.Equal(t, KindError, got[len(got)-1].Kind)

	history := session.History()
	require.Len(t, history, 1)
	assert.Equal(t, contract.RoleUser, history[0].Role)
}

func TestSession_ConcurrentSendConflicts(t *testing.T) {
	client := &blockingClient{started: make(chan struct{})}
	registry, _ := newRegistry(t, okLookup)
	settings := testSettings(6)
	settings.TurnTimeout = 100 * time.Millisecond
	session := NewSession(NewLoop(client, registry, settings))

	events, err := session.Send(context.Background(), "slow one", nil)
	require.NoError(t, err)
	<-events
	<-client.started

	_, err = session.Send(context.Background(), "impatient", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, bluErrors.ErrConflict)

	rest := collect(t, events)
	require.Len(t, rest, 1)
	assert.Equal(t, bluErrors.CategoryTurnTimeout, rest[0].Category)

	// The turn is released before its terminal event is delivered.
	events, err = session.Send(context.Background(), "again", nil)
	require.NoError(t, err)
	collect(t, events)
}

// A PDF upload becomes one document message placed right before the user message.
func TestSession_DocumentContextPrecedesUserMessage(t *testing.T) {
	client := new(MockModelClient)
	registry, _ := newRegistry(t, okLookup)

	var seen []contract.Message
	client.On("Complete", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.Get(1).(contract.CompletionRequest).Messages
	}).Return(&contract.CompletionResponse{Content: "Summary: total is 42."}, nil).Once()

	session := NewSession(NewLoop(client, registry, testSettings(6)))
	session.history = []contract.Message{
		{Role: contract.RoleUser, Content: "earlier"},
		{Role: contract.RoleAssistant, Content: "earlier answer"},
	}
	doc := &DocumentContext{Text: "Invoice total 42", MimeType: "application/pdf", Filename: "invoice.pdf", DocumentID: "01HX-invoice.pdf"}

	events, err := session.Send(context.Background(), "Summarize this", doc)
	require.NoError(t, err)
	got := collect(t, events)

	finals := 0
	for _, ev := range got {
		if ev.Kind == KindFinalAnswer {
			finals++
		}
	}
	assert.Equal(t, 1, finals)

	require.Len(t, seen, 2+2)
	docMsg := seen[2]
	assert.Equal(t, contract.RoleSystem, docMsg.Role)
	assert.Contains(t, docMsg.Content, "Invoice total 42")
	assert.Contains(t, docMsg.Content, "document_id: 01HX-invoice.pdf")
	assert.Equal(t, contract.Message{Role: contract.RoleUser, Content: "Summarize this"}, seen[3])
}

func TestDocumentContextMessage_WithoutText(t *testing.T) {
	msg := DocumentContext{MimeType: "image/png", DocumentID: "img-1"}.Message()
	assert.Equal(t, contract.RoleSystem, msg.Role)
	assert.Equal(t, "Document information:\nmime_type: image/png\ndocument_id: img-1\n\nNo text could be extracted from this file.", msg.Content)
}

func TestFormatAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text", in: "Hello", want: "Hello"},
		{name: "object", in: `{"a":1}`, want: "```json\n{\n  \"a\": 1\n}\n```"},
		{name: "array", in: `[1]`, want: "```json\n[\n  1\n]\n```"},
		{name: "broken json", in: `{"a":`, want: `{"a":`},
		{name: "braces in prose", in: "{not json} here", want: "{not json} here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAnswer(tt.in))
		})
	}
}

func TestKindIsTerminal(t *testing.T) {
	assert.True(t, KindFinalAnswer.IsTerminal())
	assert.True(t, StepEvent{Kind: KindError}.IsTerminal())
	assert.False(t, KindStatus.IsTerminal())
	assert.False(t, KindToolInvoked.IsTerminal())
	assert.False(t, KindToolResult.IsTerminal())
	assert.Equal(t, "executing_tool", StateExecutingTool.String())
}
