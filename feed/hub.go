// Package feed broadcasts live call events (turn transcripts and final
// outcomes) to WebSocket observers such as the dashboard frontend.
package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/outreachlabs/hirecall/engine"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// ConnectionResponse greets a freshly connected observer.
type ConnectionResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Hub fans conversation events out to connected observers. Slow observers
// are dropped rather than allowed to stall a live call.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*clientConn]bool
	closed  bool
}

// clientConn is one observer connection with a buffered outbound queue.
type clientConn struct {
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub
	once sync.Once
}

// Option configures the Hub.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates an event hub.
func New(opts ...Option) *Hub {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  cfg.logger,
		clients: make(map[*clientConn]bool),
	}
}

// HandleWebSocket upgrades an observer connection and registers it.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := &clientConn{
		ws:   wsConn,
		send: make(chan []byte, sendBufferSize),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = wsConn.Close()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	hello, _ := json.Marshal(ConnectionResponse{
		Type:    "connected",
		Status:  "ok",
		Message: "subscribed to call events",
	})
	conn.send <- hello

	go conn.writePump()
	go conn.readPump()
}

// Broadcast sends an event to every connected observer. It never blocks the
// calling turn.
func (h *Hub) Broadcast(ev engine.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		select {
		case conn.send <- payload:
		default:
			// Queue full; the observer is too slow to keep.
			go conn.close()
		}
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all observers.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*clientConn, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
	}
	h.clients = make(map[*clientConn]bool)
	h.mu.Unlock()

	for _, conn := range clients {
		conn.close()
	}
	return nil
}

// writePump drains the send queue onto the wire.
func (c *clientConn) writePump() {
	defer c.close()

	for payload := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump discards inbound messages and detects disconnects.
func (c *clientConn) readPump() {
	defer c.close()

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// close tears the connection down and unregisters it exactly once.
func (c *clientConn) close() {
	c.once.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()

		close(c.send)
		_ = c.ws.Close()
	})
}
