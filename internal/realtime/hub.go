// Package realtime pushes events to connected clients over WebSocket.
package realtime

import (
	"encoding/json"
	"log"
)

// Event types pushed to clients.
const (
	EventMessageNew      = "message:new"
	EventInterestNew     = "interest:new"
	EventInterestStatus  = "interest:status"
	EventListingReviewed = "listing:reviewed"
)

// Event is the envelope written to the WebSocket.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type delivery struct {
	userID string
	data   []byte
}

// Hub tracks connected clients per user and fans events out to them.
// A user may hold several connections (multiple tabs or devices).
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliveries chan delivery
	done       chan struct{}
}

// NewHub creates a hub. Call Run in a goroutine before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the client map. All map access goes through this loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
			}
			return
		case client := <-h.register:
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
		case client := <-h.unregister:
			if conns, ok := h.clients[client.userID]; ok {
				if conns[client] {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
		case d := <-h.deliveries:
			conns := h.clients[d.userID]
			for client := range conns {
				select {
				case client.send <- d.data:
				default:
					// Slow consumer; drop the connection rather than block the hub.
					delete(conns, client)
					close(client.send)
				}
			}
			if len(conns) == 0 {
				delete(h.clients, d.userID)
			}
		}
	}
}

// Close stops the hub loop and disconnects all clients.
func (h *Hub) Close() {
	close(h.done)
}

// Subscribe attaches an in-process listener for a user's events without a
// WebSocket connection. The cancel func detaches it; call it before Close.
func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
	client := &Client{userID: userID, send: make(chan []byte, 16)}
	h.register <- client
	return client.send, func() { h.detach(client) }
}

// detach hands a client back to the hub loop without blocking forever
// when the hub has already shut down.
func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends an event to every connection the user currently holds.
// Events for offline users are dropped; clients reconcile on reconnect
// via the REST endpoints.
func (h *Hub) Publish(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: marshal event %s: %v", event.Type, err)
		return
	}
	select {
	case h.deliveries <- delivery{userID: userID, data: data}:
	case <-h.done:
	}
}
