package websocket

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Registry maps a logical user identity to its currently-live connection.
// One live connection per user: a re-authentication replaces the previous
// entry, it never merges with it. Superseded connections stay open but are no
// longer addressable; no notification is sent to them.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client // userID hex -> live client
	byConn map[string]string  // connection id -> userID hex
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Client),
		byConn: make(map[string]string),
	}
}

// Register replaces any existing mapping for userID. A connection that
// re-authenticates as a different user leaves no stale mapping behind.
func (r *Registry) Register(userID primitive.ObjectID, client *Client) {
	uid := userID.Hex()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConn[client.ID]; ok && prev != uid {
		if cur, exists := r.byUser[prev]; exists && cur == client {
			delete(r.byUser, prev)
		}
	}

	if old, ok := r.byUser[uid]; ok && old != client {
		delete(r.byConn, old.ID)
	}

	r.byUser[uid] = client
	r.byConn[client.ID] = uid
}

// Resolve returns the live connection for userID. Absence means "not
// currently reachable", never an error.
func (r *Registry) Resolve(userID primitive.ObjectID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.byUser[userID.Hex()]
	return client, ok
}

// Unregister removes the entry owned by this connection, regardless of which
// user it currently maps to. After a fast reconnect the user already points
// at a newer connection; that newer mapping must survive the old connection's
// cleanup.
func (r *Registry) Unregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid, ok := r.byConn[client.ID]
	if !ok {
		return
	}
	delete(r.byConn, client.ID)

	if cur, exists := r.byUser[uid]; exists && cur == client {
		delete(r.byUser, uid)
	}
}

// Len reports the number of currently reachable users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
