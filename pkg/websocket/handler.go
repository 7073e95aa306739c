package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Options tune the upgrade path. Zero values fall back to sane defaults.
type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	EnableCompression bool
	AllowedOrigins    []string
}

// Handler owns the hub and the upgrade endpoint, and is the single publish
// surface injected into every service that needs to emit real-time events.
type Handler struct {
	hub      *Hub
	registry *Registry
	upgrader websocket.Upgrader
}

func NewHandler(opts Options) *Handler {
	registry := NewRegistry()
	hub := NewHub(registry)
	go hub.Run()

	if opts.ReadBufferSize == 0 {
		opts.ReadBufferSize = 1024
	}
	if opts.WriteBufferSize == 0 {
		opts.WriteBufferSize = 1024
	}

	return &Handler{
		hub:      hub,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    opts.ReadBufferSize,
			WriteBufferSize:   opts.WriteBufferSize,
			HandshakeTimeout:  opts.HandshakeTimeout,
			EnableCompression: opts.EnableCompression,
			CheckOrigin:       originChecker(opts.AllowedOrigins),
		},
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		return allowed[r.Header.Get("Origin")]
	}
}

// SetEventSink wires the application gateway that interprets inbound events.
func (h *Handler) SetEventSink(sink EventSink) {
	h.hub.setSink(sink)
}

// HandleWebSocket upgrades an authenticated request to a live connection and
// registers it. Identity is taken from the auth middleware; the core never
// re-authenticates.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	userType, exists := c.Get("user_type")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User type not found"})
		return
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	userTypeStr, ok := userType.(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user type"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := NewClient(h.hub, conn, userObjectID, userTypeStr)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// JoinGroup subscribes the connection to a group. Authorization happens in
// the gateway before this is called.
func (h *Handler) JoinGroup(client *Client, groupKey string) {
	h.hub.Join(client, groupKey)
}

func (h *Handler) LeaveGroup(client *Client, groupKey string) {
	h.hub.Leave(client, groupKey)
}

// Publish fans an event out to every current member of the group.
func (h *Handler) Publish(groupKey string, eventType string, data map[string]interface{}) {
	h.hub.Publish(groupKey, Event{
		Type:      eventType,
		Timestamp: now(),
		Data:      data,
	})
}

// Unicast delivers an event to the user's live connection, if any.
func (h *Handler) Unicast(userID primitive.ObjectID, eventType string, data map[string]interface{}) {
	h.hub.Unicast(userID, Event{
		Type:      eventType,
		UserID:    userID,
		Timestamp: now(),
		Data:      data,
	})
}

func (h *Handler) GetHub() *Hub {
	return h.hub
}
