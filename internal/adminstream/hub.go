// Package adminstream broadcasts signal-state and kill-switch transitions
// to connected admin-console clients over a websocket, per SPEC_FULL.md
// §13.3. It is never a source of truth — every event it carries is also
// durably recorded via internal/store first. Grounded on the
// handler-fan-out shape of
// _examples/Jonaed13-potential-pancake/internal/websocket/price_feed.go,
// adapted from an in-process callback list to a server-side broadcast hub
// using the teacher's (until now unwired) gorilla/websocket dependency.
package adminstream

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is one broadcast message, tagged by Kind (kill_switch_toggled |
// kill_switch_activated | signal_executed | signal_failed | heartbeat_missed).
type Event struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin console is a same-origin operator tool, not a public API.
	// Every origin is accepted, and the API layer mounts the stream route
	// without authentication.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans out Events to every connected admin-console client.
type Hub struct {
	clientsMu sync.RWMutex
	clients   map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("admin stream upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Event, 32)}
	h.register(c)
	defer h.unregister(c)

	go c.writeLoop()
	c.readLoop()
}

func (h *Hub) register(c *client) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	h.clientsMu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.clientsMu.Lock()
	delete(h.clients, c)
	h.clientsMu.Unlock()
	close(c.send)
	c.conn.Close()
}

// readLoop discards inbound frames (this is a broadcast-only stream) and
// exits once the client disconnects, so the deferred unregister fires.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Broadcast fans Event out to every connected client with a non-blocking
// send on each client's buffered channel; when a client's buffer is full the
// event is dropped for that client (the client stays connected) instead of
// blocking the broadcaster.
func (h *Hub) Broadcast(ev Event) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			log.Warn().Msg("admin stream client too slow, dropping event")
		}
	}
}

// ClientCount returns the number of connected admin-console clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
