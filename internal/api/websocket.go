package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventBulbColorsChanged   = "bulb_colors_changed"
	EventOutletStatesChanged = "outlet_states_changed"

	wsSendBufferSize = 64
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 10 * time.Second
	wsMaxMessageSize = 512
)

// WSMessage is every frame the hub sends.
type WSMessage struct {
	Type      string `json:"type"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub fans events out to every connected websocket client.
type Hub struct {
	logger  *zap.SugaredLogger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

// Run blocks until ctx is done and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.With(zap.String("client", c.id)).Debug("Websocket client connected")
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.With(zap.String("client", c.id)).Debug("Websocket client disconnected")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client. Slow clients miss events
// rather than stall the caller.
func (h *Hub) Broadcast(eventType string, payload any) {
	if h.ClientCount() == 0 {
		return
	}
	data, ok := h.encode(eventType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// sendTo delivers an event to one client if it is still registered.
func (h *Hub) sendTo(c *wsClient, eventType string, payload any) {
	data, ok := h.encode(eventType, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, registered := h.clients[c]; !registered {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) encode(eventType string, payload any) ([]byte, bool) {
	data, err := json.Marshal(WSMessage{
		Type:      "event",
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.With(zap.Error(err)).Error("Failed to marshal websocket event")
		return nil, false
	}
	return data, true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.With(zap.Error(err)).Warn("Websocket upgrade failed")
		return
	}
	c := &wsClient{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	s.hub.register(c)

	go c.writePump()
	go c.readPump()

	// new clients start from the current state
	s.hub.sendTo(c, EventBulbColorsChanged, s.bulbs.ColorsHex())
	s.hub.sendTo(c, EventOutletStatesChanged, s.outlets.States())
}

// readPump only services control frames; clients do not send commands.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.With(zap.Error(err)).Warn("Websocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsPongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
