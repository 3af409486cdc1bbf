package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
	"github.com/ternarybob/venor/internal/models"
	"github.com/ternarybob/venor/internal/services/events"
)

func newWSServer(h *WebSocketHandler) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	return httptest.NewServer(mux)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func waitForClients(t *testing.T, h *WebSocketHandler, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d (got %d)", want, h.ClientCount())
}

func TestWebSocketHelloAndBroadcast(t *testing.T) {
	bus := events.NewService(common.GetLogger())
	defer bus.Close()

	h := NewWebSocketHandler(bus)
	defer h.Close()

	srv := newWSServer(h)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "connected", hello.Type)

	waitForClients(t, h, 1)

	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventAlertRaised,
		Payload: &models.Alert{
			ID:    "a1",
			Level: models.AlertWarning,
			Title: "Response time slow",
		},
	}))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "alert_raised", msg.Type)

	payload, err := json.Marshal(msg.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Response time slow")
}

func TestWebSocketClientDisconnectRemoved(t *testing.T) {
	h := NewWebSocketHandler(nil)
	defer h.Close()

	srv := newWSServer(h)
	defer srv.Close()

	conn := dialWS(t, srv)
	var hello WSMessage
	require.NoError(t, conn.ReadJSON(&hello))

	waitForClients(t, h, 1)
	conn.Close()
	waitForClients(t, h, 0)
}

func TestBroadcastWithoutClients(t *testing.T) {
	h := NewWebSocketHandler(nil)
	defer h.Close()

	// Must not panic or block
	h.Broadcast(WSMessage{Type: "noop", Timestamp: time.Now()})
	assert.Equal(t, 0, h.ClientCount())
}
