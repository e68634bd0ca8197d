package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinysense/sensord/pkg/config"
	"github.com/tinysense/sensord/pkg/reading"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow same-origin requests, or requests with no Origin header
		// (direct connections from non-browser clients).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// ReadingsHub manages WebSocket connections for live reading pushes to
// dashboard clients.
type ReadingsHub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewReadingsHub creates a hub. Call Run before broadcasting.
func NewReadingsHub() *ReadingsHub {
	return &ReadingsHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run is the hub's main loop; it returns when ctx is cancelled, closing all
// client connections.
func (h *ReadingsHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)

		case message := <-h.broadcast:
			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn := range h.clients {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.unregister <- conn
				}
			}
		}
	}
}

// HasClients reports whether any client is connected.
func (h *ReadingsHub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}

// BroadcastReading pushes one accepted reading to all connected clients.
// Drops the update when the broadcast buffer is full; live updates are
// best-effort.
func (h *ReadingsHub) BroadcastReading(r reading.Reading) {
	if !h.HasClients() {
		return
	}

	msg, err := json.Marshal(map[string]interface{}{
		"type":    "reading",
		"reading": r,
	})
	if err != nil {
		log.Printf("Failed to encode reading broadcast: %v", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		log.Printf("WebSocket broadcast buffer full, dropping update")
	}
}

// HandleWebSocket upgrades a connection and registers it with the hub.
func (h *ReadingsHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	h.register <- conn

	// Reader loop: we never expect client messages, but reading is required
	// to notice closed connections.
	go func() {
		defer func() { h.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
