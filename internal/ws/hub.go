package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// branchEvent routes an event to one branch room
type branchEvent struct {
	BranchID int64
	Event    Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by branch ID
	rooms map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *branchEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *branchEvent, 256),
	}
}

// Run is the hub's main loop. Start it with go hub.Run(ctx); it returns
// when ctx is done, closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for bid, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, bid)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.branchID] == nil {
				h.rooms[client.branchID] = make(map[*Client]bool)
			}
			h.rooms[client.branchID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.BranchID] {
				select {
				case client.send <- message:
				default:
					// Send buffer full; drop the client
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.rooms[client.branchID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.branchID)
	}
}

// BroadcastToBranch sends an event to all clients subscribed to a branch.
// It never blocks; when the queue is full the event is dropped and false
// is returned.
func (h *Hub) BroadcastToBranch(branchID int64, event Event) bool {
	select {
	case h.broadcast <- &branchEvent{BranchID: branchID, Event: event}:
		return true
	default:
		return false
	}
}

// Publish marshals payload and broadcasts it as an event of the given type.
func (h *Hub) Publish(branchID int64, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if !h.BroadcastToBranch(branchID, Event{Type: eventType, Payload: data}) {
		return fmt.Errorf("broadcast queue full, dropped %s", eventType)
	}
	return nil
}

// ClientCount returns the number of clients watching a branch.
func (h *Hub) ClientCount(branchID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[branchID])
}
