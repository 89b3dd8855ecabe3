package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/bluservice/internal/agent"
	"github.com/harunnryd/bluservice/internal/concurrency"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 10 * time.Second
	wsSendBuffer   = 64
)

// agentConn is one websocket client. It owns a single conversation session for
// the lifetime of the connection.
type agentConn struct {
	server  *Server
	conn    *websocket.Conn
	session *agent.Session
	send    chan Outbound
	ctx     context.Context
	cancel  context.CancelFunc
	closeMu sync.Once
}

func (s *Server) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", append([]any{"error", err}, logger.Attrs(r.Context())...)...)
		return
	}

	session := agent.NewSession(s.opts.Loop)
	ctx, cancel := context.WithCancel(logger.WithSessionID(r.Context(), session.ID()))
	c := &agentConn{
		server:  s,
		conn:    conn,
		session: session,
		send:    make(chan Outbound, wsSendBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}

	if s.opts.Metrics != nil {
		defer s.opts.Metrics.ConnectionOpened("agent_ws")()
	}
	slog.Info("Agent websocket connected", append([]any{"remote_addr", r.RemoteAddr}, logger.Attrs(ctx)...)...)
	c.run()
	slog.Info("Agent websocket closed", logger.Attrs(ctx)...)
}

func (c *agentConn) run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	c.readLoop()
	c.close()
	<-writerDone
}

func (c *agentConn) close() {
	c.closeMu.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

func (c *agentConn) readLoop() {
	c.conn.SetReadLimit(c.server.opts.Config.MaxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("Agent websocket read failed", append([]any{"error", err}, logger.Attrs(c.ctx)...)...)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if messageType != websocket.TextMessage {
			c.enqueue(outboundError(bluErrors.InvalidInput("only text messages are supported")))
			continue
		}

		req, err := decodeChatRequest(data)
		if err != nil {
			c.enqueue(outboundError(err))
			continue
		}
		concurrency.SafeGo(c.ctx, "ws.turn", func() { c.runTurn(req) }, func(any) {
			c.enqueue(outboundError(bluErrors.Internal("turn aborted")))
		})
	}
}

func (c *agentConn) runTurn(req ChatRequest) {
	doc, err := c.server.docs.prepare(c.ctx, req.File)
	if err != nil {
		c.enqueue(outboundError(err))
		return
	}

	events, err := c.session.Send(c.ctx, req.Content, doc)
	if err != nil {
		c.enqueue(outboundError(err))
		return
	}
	for ev := range events {
		c.enqueue(outboundFromEvent(ev))
	}
}

// writeLoop is the only writer on the connection.
func (c *agentConn) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Debug("Agent websocket write failed", append([]any{"error", err}, logger.Attrs(c.ctx)...)...)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// enqueue blocks until the frame is queued or the connection is gone.
func (c *agentConn) enqueue(msg Outbound) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.ctx.Done():
		return false
	}
}
