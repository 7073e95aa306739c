package websocket

import (
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Hub organizes live connections into addressable groups (one per chat
// session, one per watched taxi) and supports direct unicast-by-user through
// the connection registry. Delivery is best-effort: no acknowledgment, no
// retry; a disconnected or slow member simply does not receive the event.
type Hub struct {
	clients    map[*Client]bool
	registry   *Registry
	register   chan *Client
	unregister chan *Client
	groups     map[string]map[*Client]bool
	mutex      sync.RWMutex
	sink       EventSink
}

// Event is the wire frame exchanged with clients.
type Event struct {
	Type      string                 `json:"type"`
	GroupKey  string                 `json:"group_key,omitempty"`
	UserID    primitive.ObjectID     `json:"user_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// EventSink receives application events read off a client connection. The hub
// itself never interprets them; routing decisions belong to the gateway that
// owns the services.
type EventSink interface {
	HandleEvent(client *Client, event Event)
}

func NewHub(registry *Registry) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		registry:   registry,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		groups:     make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()

	h.registry.Register(client.UserID, client)
	log.Printf("client connected: user=%s conn=%s", client.UserID.Hex(), client.ID)

	h.sendToClient(client, Event{
		Type:      "welcome",
		UserID:    client.UserID,
		Timestamp: now(),
		Data:      map[string]interface{}{"connection_id": client.ID},
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.registry.Unregister(client)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for key, group := range h.groups {
		if _, exists := group[client]; exists {
			delete(group, client)
			if len(group) == 0 {
				delete(h.groups, key)
			}
		}
	}

	log.Printf("client disconnected: user=%s conn=%s", client.UserID.Hex(), client.ID)
}

// Join adds the connection to a group. Repeat joins are idempotent; a
// connection may belong to any number of groups at once.
func (h *Hub) Join(client *Client, groupKey string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.groups[groupKey] == nil {
		h.groups[groupKey] = make(map[*Client]bool)
	}
	h.groups[groupKey][client] = true
	client.groups[groupKey] = true
}

// Leave removes the connection from a group. Leaving a group the connection
// is not in is a no-op.
func (h *Hub) Leave(client *Client, groupKey string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if group, exists := h.groups[groupKey]; exists {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, groupKey)
		}
	}
	delete(client.groups, groupKey)
}

// Publish delivers the event to every connection currently in the group.
func (h *Hub) Publish(groupKey string, event Event) {
	event.GroupKey = groupKey
	if event.Timestamp == 0 {
		event.Timestamp = now()
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	group, exists := h.groups[groupKey]
	if !exists {
		return
	}
	for client := range group {
		h.sendToClient(client, event)
	}
}

// Unicast delivers the event to whichever connection currently represents the
// user. An offline recipient is a silent no-op: the sender is not told whether
// the recipient is reachable.
func (h *Hub) Unicast(userID primitive.ObjectID, event Event) {
	client, ok := h.registry.Resolve(userID)
	if !ok {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = now()
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	// The connection can unregister between the resolve and here; once it
	// leaves the client set its send channel is closed and must not be
	// written to.
	if _, live := h.clients[client]; !live {
		return
	}
	h.sendToClient(client, event)
}

func (h *Hub) sendToClient(client *Client, event Event) {
	data, err := marshalEvent(event)
	if err != nil {
		log.Printf("drop undeliverable event %q: %v", event.Type, err)
		return
	}
	select {
	case client.send <- data:
	default:
		// Send buffer full: the member misses this event, per contract.
	}
}

func (h *Hub) setSink(sink EventSink) {
	h.sink = sink
}

func (h *Hub) dispatch(client *Client, event Event) {
	if h.sink == nil {
		log.Printf("no event sink registered, dropping %q from %s", event.Type, client.UserID.Hex())
		return
	}
	h.sink.HandleEvent(client, event)
}

func now() int64 {
	return time.Now().Unix()
}
