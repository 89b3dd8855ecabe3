package agent

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/bluservice/internal/concurrency"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/model/contract"

	"github.com/google/uuid"
)

// DocumentContext is the text derived from one uploaded file. It is attached to the
// transcript as a system message right before the user message it came with.
type DocumentContext struct {
	Text       string
	MimeType   string
	Filename   string
	DocumentID string
}

func (d DocumentContext) Message() contract.Message {
	var sb strings.Builder
	sb.WriteString("Document information:")
	if d.Filename != "" {
		sb.WriteString("\nfilename: " + d.Filename)
	}
	if d.MimeType != "" {
		sb.WriteString("\nmime_type: " + d.MimeType)
	}
	if d.DocumentID != "" {
		sb.WriteString("\ndocument_id: " + d.DocumentID)
	}
	sb.WriteString("\n\n")
	if strings.TrimSpace(d.Text) == "" {
		sb.WriteString("No text could be extracted from this file.")
	} else {
		sb.WriteString(d.Text)
	}
	return contract.Message{Role: contract.RoleSystem, Content: sb.String()}
}

// Session holds the history of one conversation. It runs one turn at a time.
type Session struct {
	id      string
	loop    *Loop
	mu      sync.Mutex
	history []contract.Message
	busy    atomic.Bool
}

func NewSession(loop *Loop) *Session {
	return &Session{
		id:   uuid.NewString(),
		loop: loop,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Settings() Settings {
	return s.loop.Settings()
}

// History returns a copy of the committed transcript.
func (s *Session) History() []contract.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contract.Message(nil), s.history...)
}

func (s *Session) Clear() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}

// Send starts a turn for content with an optional document. It fails with
// ErrInvalidInput for empty content and ErrConflict while another turn is running.
// The user message, and the answer when the turn succeeds, are committed to the
// history before the terminal event is delivered.
func (s *Session) Send(ctx context.Context, content string, doc *DocumentContext) (<-chan StepEvent, error) {
	if strings.TrimSpace(content) == "" {
		return nil, bluErrors.InvalidInput("message content is empty")
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, bluErrors.Conflict("a turn is already in progress")
	}

	if logger.GetSessionID(ctx) == "" {
		ctx = logger.WithSessionID(ctx, s.id)
	}

	user := contract.Message{Role: contract.RoleUser, Content: content}
	transcript := s.History()
	if doc != nil {
		transcript = append(transcript, doc.Message())
	}
	transcript = append(transcript, user)

	inner := s.loop.Run(ctx, transcript)
	out := make(chan StepEvent)

	concurrency.SafeGo(ctx, "agent.session", func() {
		committed := false
		commit := func(answer *contract.Message) {
			if committed {
				return
			}
			committed = true
			s.mu.Lock()
			s.history = append(s.history, user)
			if answer != nil {
				s.history = append(s.history, *answer)
			}
			s.mu.Unlock()
			s.busy.Store(false)
		}
		defer func() {
			commit(nil)
			close(out)
		}()

		forwarding := true
		for ev := range inner {
			if ev.IsTerminal() {
				var answer *contract.Message
				if ev.Kind == KindFinalAnswer {
					answer = &contract.Message{Role: contract.RoleAssistant, Content: ev.Content}
				}
				commit(answer)
			}
			if !forwarding {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				forwarding = false
			}
		}
	}, nil)

	return out, nil
}
