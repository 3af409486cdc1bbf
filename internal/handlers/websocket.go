package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venor/internal/common"
	"github.com/ternarybob/venor/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local control surface; no cross-origin restriction
	},
}

// WSMessage is the envelope for every frame pushed to clients.
type WSMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// WebSocketHandler fans pipeline events out to connected clients. Each
// connection gets its own write mutex; gorilla conns do not allow
// concurrent writers.
type WebSocketHandler struct {
	events           interfaces.EventService
	logger           arbor.ILogger
	serverInstanceID string // Clients use this to detect server restarts

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
}

// streamedEvents is the set of bus events forwarded to websocket clients.
var streamedEvents = []interfaces.EventType{
	interfaces.EventTaskEnqueued,
	interfaces.EventTaskStarted,
	interfaces.EventTaskCompleted,
	interfaces.EventTaskFailed,
	interfaces.EventTaskCancelled,
	interfaces.EventTaskRetrying,
	interfaces.EventSessionRecorded,
	interfaces.EventAlertRaised,
	interfaces.EventBoardAnalyzed,
	interfaces.EventRateLimitWidened,
}

// NewWebSocketHandler creates the handler and subscribes it to the event
// bus.
func NewWebSocketHandler(events interfaces.EventService) *WebSocketHandler {
	h := &WebSocketHandler{
		events:           events,
		logger:           common.GetLogger(),
		serverInstanceID: uuid.New().String(),
		clients:          make(map[*websocket.Conn]*sync.Mutex),
	}

	if events != nil {
		for _, eventType := range streamedEvents {
			if err := events.Subscribe(eventType, h.onEvent); err != nil {
				h.logger.Warn().Err(err).Str("event", string(eventType)).Msg("WebSocket event subscription failed")
			}
		}
	}
	return h
}

// HandleWebSocket upgrades the connection and registers the client. The
// read loop exists only to detect the close handshake.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Str("remote", r.RemoteAddr).Int("clients", count).Msg("WebSocket client connected")

	h.send(conn, WSMessage{
		Type: "connected",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
			"version":            common.GetVersion(),
		},
		Timestamp: time.Now(),
	})

	go h.readLoop(conn)
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}

// Broadcast pushes one message to every connected client. Clients whose
// write fails are dropped.
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, lock := range h.clients {
		conns[conn] = lock
	}
	h.mu.RUnlock()

	for conn, lock := range conns {
		lock.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		lock.Unlock()
		if err != nil {
			h.drop(conn)
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	lock, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	lock.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, data)
	lock.Unlock()
	if writeErr != nil {
		h.drop(conn)
	}
}

// onEvent bridges one bus event to all clients.
func (h *WebSocketHandler) onEvent(ctx context.Context, event interfaces.Event) error {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return nil
	}

	h.Broadcast(WSMessage{
		Type:      string(event.Type),
		Payload:   event.Payload,
		Timestamp: time.Now(),
	})
	return nil
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]*sync.Mutex)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutdown"))
		conn.Close()
	}
}
