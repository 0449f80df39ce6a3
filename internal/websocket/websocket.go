package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quoteflow/internal/apperr"
	"quoteflow/internal/auth"
	"quoteflow/internal/models"
	"quoteflow/internal/response"
)

// Event is the payload broadcast to connected WebSocket clients. Events with
// an OwnerID reach only that owner and principals allowed to view all RFQs.
type Event struct {
	Type    string `json:"type"`
	ID      any    `json:"id"`
	Action  string `json:"action"`
	OwnerID string `json:"-"`
}

// client wraps a WebSocket connection with a mutex for thread-safe writes.
type client struct {
	conn      *ws.Conn
	mu        sync.Mutex
	principal *models.Principal
}

// Hub maintains connected WebSocket clients and broadcasts change events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	gate    *auth.Gate
	log     zerolog.Logger
}

func NewHub(gate *auth.Gate, log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		gate:    gate,
		log:     log.With().Str("component", "ws").Logger(),
	}
}

// visible reports whether c may receive evt.
func (h *Hub) visible(c *client, evt Event) bool {
	if c.principal == nil {
		return false
	}
	if evt.OwnerID == "" || evt.OwnerID == c.principal.UserID {
		return true
	}
	return h.gate.CanPerform(c.principal, auth.ActionViewAll, nil)
}

func (h *Hub) register(c *client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok && c.conn != nil {
		_ = c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every client allowed to see it. Clients that
// fail a write are dropped.
func (h *Hub) Broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event")
		return
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if h.visible(c, evt) {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		writeErr := func() (writeErr error) {
			defer func() {
				if r := recover(); r != nil {
					writeErr = fmt.Errorf("ws: write panic: %v", r)
				}
			}()
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			return c.conn.WriteMessage(ws.TextMessage, data)
		}()
		c.mu.Unlock()

		if writeErr != nil {
			h.log.Debug().Err(writeErr).Msg("dropping client")
			h.unregister(c)
		}
	}
}

// BroadcastChange announces that a shared resource changed, e.g.
// ("supplier", "created", id) is sent as type "supplier_created" to every
// client.
func (h *Hub) BroadcastChange(resourceType, action string, id any) {
	h.BroadcastOwnedChange(resourceType, action, id, "")
}

// BroadcastOwnedChange announces a change to a resource owned by ownerID.
func (h *Hub) BroadcastOwnedChange(resourceType, action string, id any, ownerID string) {
	h.Broadcast(Event{
		Type:    resourceType + "_" + action,
		ID:      id,
		Action:  action,
		OwnerID: ownerID,
	})
}

// Upgrader is the default WebSocket upgrader.
var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades an authenticated request and keeps the connection alive
// with pings until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFrom(r.Context())
	if p == nil {
		response.Err(w, "Unauthorized", string(apperr.KindUnauthenticated), http.StatusUnauthorized)
		return
	}
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	c := &client{conn: conn, principal: p}
	n := h.register(c)
	h.log.Info().Int("clients", n).Str("user", p.Username).Msg("client connected")

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteControl(ws.PingMessage, nil, time.Now().Add(5*time.Second))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	h.unregister(c)
	h.log.Info().Msg("client disconnected")
}
