package ws

import (
	"errors"
	"log/slog"
	"sync"

	"geo-chat-service/internal/logging"
	"geo-chat-service/internal/observability"
)

// ErrAlreadyBound is returned when a connection tries to bind a second identity.
var ErrAlreadyBound = errors.New("connection already bound to a user")

const wsKind = "geo"

// Hub tracks live clients and the user bound to each of them. The user index
// is maintained under the same lock as the client set.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]string
	byUser  map[string]*Client
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]string),
		byUser:  make(map[string]*Client),
		log:     log,
	}
}

// Register adds an unbound client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		h.clients[c] = ""
	}
}

// Unregister removes the client and its user index entry. It returns the
// user id the client was bound to, if any.
func (h *Hub) Unregister(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	userID, ok := h.clients[c]
	if !ok {
		return ""
	}
	delete(h.clients, c)
	if userID != "" && h.byUser[userID] == c {
		delete(h.byUser, userID)
	}
	return userID
}

// Bind associates a registered client with userID. A client binds at most once.
func (h *Hub) Bind(c *Client, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	current, ok := h.clients[c]
	if !ok {
		return ErrClientClosed
	}
	if current != "" {
		return ErrAlreadyBound
	}
	h.clients[c] = userID
	h.byUser[userID] = c
	c.session.UserID = userID
	return nil
}

// ClientForUser returns the connection currently bound to userID.
func (h *Hub) ClientForUser(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byUser[userID]
	return c, ok
}

// SendToUser delivers payload to the user's connection, if it is connected.
func (h *Hub) SendToUser(userID string, payload []byte) bool {
	c, ok := h.ClientForUser(userID)
	if !ok {
		return false
	}
	return h.deliver(c, payload)
}

// Broadcast delivers payload to every live connection, bound or not.
func (h *Hub) Broadcast(payload []byte) {
	for _, c := range h.snapshot() {
		h.deliver(c, payload)
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every live connection. Their read loops then unregister them.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot() {
		c.Close()
	}
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) deliver(c *Client, payload []byte) bool {
	if err := c.Send(payload); err != nil {
		observability.IncWSDropped(wsKind)
		h.log.Warn("ws hub - frame dropped", logging.ConnID(c.ID()), logging.Err(err))
		return false
	}
	return true
}
