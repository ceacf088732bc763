// Package broadcast fans derived pipeline events out to websocket
// subscribers: one endpoint, server-initiated JSON messages only, no
// per-client filtering — clients filter by the `symbol` field
// themselves.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"microstructmon/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// envelope is the wire message shape every broadcast message shares.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of connected clients and fans out serialized
// envelopes to all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	logger  *zap.SugaredLogger
	metrics *telemetry.Metrics
}

// New creates an empty hub.
func New(logger *zap.SugaredLogger, metrics *telemetry.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Broadcast serializes {type, data} once and fans it out to every
// connected client. A client whose send buffer is full is
// dropped for this message — no back-pressure to producers.
func (h *Hub) Broadcast(msgType string, data any) {
	payload, err := json.Marshal(envelope{Type: msgType, Data: data})
	if err != nil {
		if h.logger != nil {
			h.logger.Warnw("broadcast: marshal failed", "type", msgType, "err", err)
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client: drop this message rather than block the
			// producer.
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and
// registers the client for live broadcasts. Mounted at BASE_PATH/.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Warnw("broadcast: upgrade failed", "err", err)
		}
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WsClients.Set(float64(n))
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WsClients.Set(float64(n))
	}
}

// client is one connected websocket subscriber. Sends to its connection
// must be serialized, enforced here by routing every
// broadcast through the single writePump goroutine reading off send.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	// Server-initiated messages only; this loop exists
	// purely to detect client close/error.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		if _, err := w.Write(msg); err != nil {
			w.Close()
			return
		}
		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
