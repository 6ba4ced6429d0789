package ws

import (
	"context"
	"log/slog"
)

type delivery struct {
	conversationID string
	payload        []byte
}

// Hub tracks active websocket connections per conversation and routes
// committed chat events to every open subscription of that conversation.
// Delivery is best-effort: a client whose send buffer is full is dropped and
// must reconnect.
type Hub struct {
	logger *slog.Logger

	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliveries chan delivery
	done       chan struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the subscription registry until ctx is cancelled. After it returns
// the registration and delivery entry points become no-ops, so client pumps
// tearing down during shutdown never block.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, room := range h.rooms {
				for c := range room {
					close(c.send)
				}
			}
			return
		case c := <-h.register:
			if _, ok := h.rooms[c.conversationID]; !ok {
				h.rooms[c.conversationID] = make(map[*Client]bool)
			}
			h.rooms[c.conversationID][c] = true
			if h.logger != nil {
				h.logger.Debug("ws client registered", "conversation_id", c.conversationID, "user_id", c.userID)
			}
		case c := <-h.unregister:
			if room, ok := h.rooms[c.conversationID]; ok {
				if _, exists := room[c]; exists {
					delete(room, c)
					close(c.send)
				}
				if len(room) == 0 {
					delete(h.rooms, c.conversationID)
				}
			}
		case d := <-h.deliveries:
			room, ok := h.rooms[d.conversationID]
			if !ok {
				continue
			}
			for c := range room {
				select {
				case c.send <- d.payload:
				default:
					close(c.send)
					delete(room, c)
				}
			}
		}
	}
}

// Deliver enqueues a payload for the conversation's active subscriptions.
func (h *Hub) Deliver(conversationID string, payload []byte) {
	select {
	case h.deliveries <- delivery{conversationID: conversationID, payload: payload}:
	case <-h.done:
	}
}

func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
