package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from a different origin than the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans queue status snapshots out to connected WebSocket clients.
// Clients are listen-only; inbound frames are read and discarded so that
// close frames and dead peers are detected.
type Hub struct {
	mu      sync.Mutex
	writeMu sync.Mutex
	clients map[*websocket.Conn]struct{}
	log     *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	hlog := logger.With().Str("component", "StatusHub").Logger()
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     &hlog,
	}
}

// ServeWS upgrades the request and registers the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Int("clients", n).Msg("websocket client connected")

	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// BroadcastJSON sends v to every connected client. Best-effort: a failed
// write drops that client and the broadcast continues.
func (h *Hub) BroadcastJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.Warn().Err(err).Msg("status broadcast marshal failed")
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	// Broadcasts come from both the queue worker and HTTP handlers;
	// gorilla connections allow only one concurrent writer.
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(c)
		}
	}
}

// ClientCount returns the number of connected clients. Diagnostic only.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, known := h.clients[conn]
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
	if known {
		h.log.Debug().Msg("websocket client disconnected")
	}
}
