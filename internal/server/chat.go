package server

import (
	"context"
	"io"
	"net/http"

	"github.com/harunnryd/bluservice/internal/agent"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.Config.MaxBodyBytes))
	if err != nil {
		writeError(ctx, w, bluErrors.InvalidInput("request body too large or unreadable"))
		return
	}
	req, err := decodeChatRequest(body)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	answer, err := s.runTurn(ctx, agent.NewSession(s.opts.Loop), req)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]string{"response": answer})
}

// runTurn sends one request through session and waits for the terminal event.
func (s *Server) runTurn(ctx context.Context, session *agent.Session, req ChatRequest) (string, error) {
	ctx = logger.WithSessionID(ctx, session.ID())

	doc, err := s.docs.prepare(ctx, req.File)
	if err != nil {
		return "", err
	}
	events, err := session.Send(ctx, req.Content, doc)
	if err != nil {
		return "", err
	}

	var final *agent.StepEvent
	for ev := range events {
		if ev.IsTerminal() {
			ev := ev
			final = &ev
		}
	}

	switch {
	case final == nil:
		if ctx.Err() != nil {
			return "", bluErrors.Wrap(ctx.Err(), "request cancelled")
		}
		return "", bluErrors.Internal("turn ended without a result")
	case final.Kind == agent.KindError:
		if final.Err != nil {
			return "", final.Err
		}
		return "", bluErrors.Internal(final.Content)
	default:
		return final.Content, nil
	}
}
