package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Notification is broadcast to /ws subscribers when /process finishes.
type Notification struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Notification
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// notifyHub fans notifications out to every connected subscriber. A subscriber
// whose buffer is full misses the notification.
type notifyHub struct {
	mu      sync.RWMutex
	subs    map[string]*subscriber
	metrics *observability.Metrics
}

func newNotifyHub(metrics *observability.Metrics) *notifyHub {
	return &notifyHub{subs: make(map[string]*subscriber), metrics: metrics}
}

func (h *notifyHub) add(id string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = sub
}

func (h *notifyHub) remove(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.stop()
	}
}

func (h *notifyHub) broadcast(n Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, sub := range h.subs {
		select {
		case sub.send <- n:
			delivered++
		default:
			slog.Warn("Notification dropped, subscriber is slow", "subscriber", id)
		}
	}
	return delivered
}

func (h *notifyHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *notifyHub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
}

func (s *Server) handleNotifyWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", append([]any{"error", err}, logger.Attrs(r.Context())...)...)
		return
	}

	id := uuid.NewString()
	sub := &subscriber{conn: conn, send: make(chan Notification, wsSendBuffer), done: make(chan struct{})}
	s.notify.add(id, sub)
	defer s.notify.remove(id)
	if s.opts.Metrics != nil {
		defer s.opts.Metrics.ConnectionOpened("notify_ws")()
	}

	go notifyWriteLoop(sub)

	// Inbound frames are ignored; reading keeps pongs and close frames flowing.
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

func notifyWriteLoop(sub *subscriber) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			return
		case n := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sub.conn.WriteJSON(n); err != nil {
				sub.stop()
				return
			}
		case <-ticker.C:
			if err := sub.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				sub.stop()
				return
			}
		}
	}
}
