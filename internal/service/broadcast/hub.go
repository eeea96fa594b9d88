package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"acta-transcript-engine/internal/models"
	"acta-transcript-engine/internal/observability/logging"
	"acta-transcript-engine/internal/observability/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientQueueLen = 64
)

// ErrSlowSubscriber is reported when a subscriber's queue is full and the
// event was not delivered to it.
var ErrSlowSubscriber = errors.New("subscriber queue full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues payload without blocking. It reports false when the queue
// is full; a closed subscriber silently drops the payload.
func (s *subscriber) trySend(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// Hub is a Sink that pushes every event of a session to the websocket
// clients subscribed to it.
type Hub struct {
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu      sync.RWMutex
	clients map[string]map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		metrics: metrics.DefaultMetrics,
		log:     logging.WithComponent("broadcast.Hub"),
		clients: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish queues ev for every subscriber of its session. A subscriber whose
// queue is full misses the event and is disconnected.
func (h *Hub) Publish(_ context.Context, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.clients[ev.Session()]))
	for s := range h.clients[ev.Session()] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	var slow bool
	for _, s := range subs {
		if !s.trySend(payload) {
			slow = true
			h.log.Warn().
				Str("sessionId", ev.Session()).
				Msg("Dropping slow websocket subscriber")
			h.remove(ev.Session(), s)
		}
	}
	if slow {
		return ErrSlowSubscriber
	}
	return nil
}

// Subscribers returns the number of clients attached to a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Forget disconnects every subscriber of a closed session.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	subs := h.clients[sessionID]
	delete(h.clients, sessionID)
	h.mu.Unlock()

	for s := range subs {
		s.close()
		h.metrics.WebsocketClients.Dec()
	}
}

// ServeWS upgrades the request and streams the session's events to it until
// the client goes away or the session is closed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Str("sessionId", sessionID).Msg("WebSocket upgrade failed")
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, clientQueueLen)}
	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*subscriber]struct{})
	}
	h.clients[sessionID][s] = struct{}{}
	h.mu.Unlock()
	h.metrics.WebsocketClients.Inc()

	h.log.Info().
		Str("sessionId", sessionID).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket subscriber connected")

	go h.writePump(sessionID, s)
	h.readPump(sessionID, s)
}

func (h *Hub) remove(sessionID string, s *subscriber) {
	h.mu.Lock()
	set := h.clients[sessionID]
	_, ok := set[s]
	if ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.clients, sessionID)
		}
	}
	h.mu.Unlock()

	if ok {
		s.close()
		h.metrics.WebsocketClients.Dec()
	}
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(sessionID string, s *subscriber) {
	defer h.remove(sessionID, s)

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("sessionId", sessionID).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(sessionID string, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
		h.log.Info().Str("sessionId", sessionID).Msg("WebSocket subscriber disconnected")
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(sessionID, s)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sessionID, s)
				return
			}
		}
	}
}
