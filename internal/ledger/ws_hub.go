// Package ledger — WebSocket hub for real-time price and position events.
package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lorem111/claerdex/internal/metrics"
	"github.com/lorem111/claerdex/internal/oracle"
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type     string `json:"type"`
	Asset    string `json:"asset,omitempty"`
	Price    string `json:"price,omitempty"`
	Address  string `json:"address,omitempty"`
	Position string `json:"position_id,omitempty"`
	Side     string `json:"side,omitempty"`
	PnL      string `json:"pnl,omitempty"`
}

// WSHub manages WebSocket connections and broadcasts price ticks and
// position events to all connected clients.
type WSHub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case msg := <-h.broadcast:
			// Full lock: failed writes remove the client, and holding it
			// through the writes keeps the ping goroutines off the
			// connections (gorilla allows one concurrent writer).
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking the caller.
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- conn

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			// Write while holding the hub lock so pings never interleave
			// with a broadcast write on the same connection.
			h.mu.Lock()
			_, ok := h.clients[conn]
			if !ok {
				h.mu.Unlock()
				return
			}
			err := conn.WriteMessage(websocket.PingMessage, nil)
			h.mu.Unlock()
			if err != nil {
				return
			}
		}
	}()
}

// RunPricePoller broadcasts a price_tick for every quotable asset on each
// tick until the context is cancelled. Pairs the hub with a price source
// so clients see market moves without polling.
func RunPricePoller(ctx context.Context, src oracle.Source, hub *WSHub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			quotes, err := src.Prices(ctx)
			if err != nil {
				continue
			}
			for symbol, price := range quotes {
				hub.Broadcast(WSMessage{
					Type:  "price_tick",
					Asset: symbol,
					Price: price.String(),
				})
			}
		}
	}
}
