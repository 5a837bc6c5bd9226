package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctrlhome/automation-core/internal/bus"
	"github.com/ctrlhome/automation-core/internal/infrastructure/logging"
	"github.com/ctrlhome/automation-core/internal/rules"
)

const (
	wsEventTypeStateUpdate = "state_update"
	wsEventTypeRuleFired   = "rule_fired"

	wsSendBufferSize = 256
	wsPingInterval   = 30 * time.Second
	wsPongTimeout    = 60 * time.Second
	wsMaxMessageSize = 4096
)

// streamEvent is one message on the live event stream (§2a): an additive,
// best-effort broadcast, never required for any REST endpoint to function.
type streamEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// stateUpdatePayload is the payload of a state_update event.
type stateUpdatePayload struct {
	Topic string         `json:"topic"`
	State map[string]any `json:"state"`
}

// ruleFiredPayload is the payload of a rule_fired event.
type ruleFiredPayload struct {
	RuleID  string         `json:"rule_id"`
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload"`
}

// Hub fans out stream events to connected WebSocket clients. A slow or
// disconnected client is dropped rather than allowed to block the
// dispatch path (bounded per-client buffer, drop-and-disconnect on
// overflow).
type Hub struct {
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func newHub(logger *logging.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

func (h *Hub) run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if existed {
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// broadcast marshals event and fans it out to every connected client,
// dropping clients whose outbound buffer is full.
func (h *Hub) broadcast(eventType string, payload any) {
	data, err := json.Marshal(streamEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal stream event", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.trySend(data)
	}
}

// OnStateUpdate implements bus.Observer: broadcasts a state_update event
// carrying the topic and the raw parsed payload. The bus client calls it
// for every message that parses as JSON, after StateCache.Apply returns,
// whether or not Apply stored an entry for it.
func (h *Hub) OnStateUpdate(topic string, payload map[string]any) {
	h.broadcast(wsEventTypeStateUpdate, stateUpdatePayload{Topic: topic, State: payload})
}

// OnRuleFired implements bus.Observer: broadcasts a rule_fired event
// whenever RuleEvaluator resolves an action.
func (h *Hub) OnRuleFired(action rules.ResolvedAction) {
	h.broadcast(wsEventTypeRuleFired, ruleFiredPayload{
		RuleID:  action.RuleID,
		Topic:   action.Topic,
		Payload: action.Payload,
	})
}

var _ bus.Observer = (*Hub)(nil)

// wsClient is one connected event-stream subscriber.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // origin checking is done in handleStream against the CORS allow-list
	},
}

// handleStream upgrades the connection and streams state_update/
// rule_fired events to the client. It carries no request/response
// semantics; a client that never connects sees identical REST behavior.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeUnavailable(w, "event stream not initialized")
		return
	}
	if origin := r.Header.Get("Origin"); origin != "" && !s.isAllowedOrigin(origin) {
		writeEnvelope(w, http.StatusForbidden, "origin not allowed", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, wsSendBufferSize)}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

// readPump drains and discards client frames; the stream is one-way, but
// reading is required to notice disconnects and respond to control
// frames (ping/close).
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
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
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend drops the message rather than blocking a full client buffer,
// per the live event stream's drop-and-disconnect-slow-clients contract.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		go c.hub.unregister(c)
	}
}
