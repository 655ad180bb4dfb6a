package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func (h *WSHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func waitForClients(t *testing.T, h *WSHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.clientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, h.clientCount())
}

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func TestWSHub_BroadcastDeliversToClients(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.Broadcast(WSMessage{Type: "price_tick", Asset: "AE", Price: "0.0312"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("bad message %q: %v", data, err)
	}
	if msg.Type != "price_tick" || msg.Asset != "AE" || msg.Price != "0.0312" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestWSHub_DroppedClientIsRemoved(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()

	// A broadcast against the dead connection must evict it rather than
	// leave a stale entry behind.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.clientCount() > 0 {
		hub.Broadcast(WSMessage{Type: "price_tick", Asset: "AE", Price: "0.03"})
		time.Sleep(20 * time.Millisecond)
	}
	waitForClients(t, hub, 0)
}

func TestWSHub_ConcurrentBroadcasts(t *testing.T) {
	hub := NewWSHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dialHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.Broadcast(WSMessage{Type: "price_tick", Asset: "BTC", Price: "68000"})
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	received := 0
	for received < 10 {
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("read failed after %d messages: %v", received, err)
		}
		received++
	}
	<-done
}
