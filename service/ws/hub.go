package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const sendBuffer = 16

// Message is what dashboard sessions receive.
type Message struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
	SentAt time.Time   `json:"sent_at"`
}

// Hub fans booking events out to the open sessions of each host.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[uint]map[*Client]bool

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[uint]map[*Client]bool),
		log:        log,
	}
}

// Run serves registrations until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.HostID] == nil {
				h.clients[client.HostID] = make(map[*Client]bool)
			}
			h.clients[client.HostID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, sessions := range h.clients {
				for client := range sessions {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	sessions, ok := h.clients[client.HostID]
	if !ok || !sessions[client] {
		return
	}
	delete(sessions, client)
	close(client.Send)
	if len(sessions) == 0 {
		delete(h.clients, client.HostID)
	}
}

// Publish delivers an event to every session of the host. Sessions that cannot keep up miss it.
func (h *Hub) Publish(hostID uint, event string, payload interface{}) {
	raw, err := json.Marshal(Message{Type: event, Data: payload, SentAt: time.Now().UTC()})
	if err != nil {
		h.log.Error("failed to encode live event", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[hostID] {
		select {
		case client.Send <- raw:
		default:
			h.log.Warn("dropping live event for slow session", "host_id", hostID, "event", event)
		}
	}
}

// Sessions returns how many sessions the host has open.
func (h *Hub) Sessions(hostID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[hostID])
}
