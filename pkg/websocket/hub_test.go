package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestHub() *Hub {
	return NewHub(NewRegistry())
}

func attach(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	client.hub = hub
	hub.registerClient(client)
	drain(t, client) // welcome frame
}

func drain(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case payload := <-client.send:
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return event
	default:
		t.Fatal("expected a frame on the send buffer")
		return Event{}
	}
}

func assertNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected frame: %s", payload)
	default:
	}
}

func TestHubWelcomeOnRegister(t *testing.T) {
	hub := newTestHub()
	client := testClient(primitive.NewObjectID())
	client.hub = hub

	hub.registerClient(client)

	welcome := drain(t, client)
	if welcome.Type != "welcome" {
		t.Errorf("first frame type = %q, want welcome", welcome.Type)
	}
	if welcome.Data["connection_id"] != client.ID {
		t.Error("welcome frame missing the connection id")
	}
}

func TestHubPublishReachesOnlyGroupMembers(t *testing.T) {
	hub := newTestHub()
	member := testClient(primitive.NewObjectID())
	outsider := testClient(primitive.NewObjectID())
	attach(t, hub, member)
	attach(t, hub, outsider)

	hub.Join(member, "taxi_abc")
	hub.Publish("taxi_abc", Event{Type: "taxiUpdate", Data: map[string]interface{}{"status": "full"}})

	got := drain(t, member)
	if got.Type != "taxiUpdate" || got.GroupKey != "taxi_abc" {
		t.Errorf("member got %q in group %q", got.Type, got.GroupKey)
	}
	assertNoFrame(t, outsider)
}

func TestHubJoinIsIdempotent(t *testing.T) {
	hub := newTestHub()
	client := testClient(primitive.NewObjectID())
	attach(t, hub, client)

	hub.Join(client, "chat_1")
	hub.Join(client, "chat_1")
	hub.Publish("chat_1", Event{Type: "receiveMessage"})

	drain(t, client)
	assertNoFrame(t, client)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	hub := newTestHub()
	client := testClient(primitive.NewObjectID())
	attach(t, hub, client)

	hub.Join(client, "chat_1")
	hub.Leave(client, "chat_1")
	hub.Leave(client, "chat_1") // leaving again is a no-op
	hub.Publish("chat_1", Event{Type: "receiveMessage"})

	assertNoFrame(t, client)
}

func TestHubPublishToEmptyGroup(t *testing.T) {
	hub := newTestHub()
	hub.Publish("nobody_here", Event{Type: "taxiUpdate"})
}

func TestHubUnicastDeliversToLiveConnection(t *testing.T) {
	hub := newTestHub()
	userID := primitive.NewObjectID()
	client := testClient(userID)
	attach(t, hub, client)

	hub.Unicast(userID, Event{Type: "newMessage", Data: map[string]interface{}{"chat_session_id": "x"}})

	got := drain(t, client)
	if got.Type != "newMessage" {
		t.Errorf("frame type = %q, want newMessage", got.Type)
	}
	if got.Timestamp == 0 {
		t.Error("unicast frame missing timestamp")
	}
}

func TestHubUnicastToOfflineUserIsNoOp(t *testing.T) {
	hub := newTestHub()
	hub.Unicast(primitive.NewObjectID(), Event{Type: "newMessage"})
}

func TestHubUnicastAfterSupersedeTargetsNewConnection(t *testing.T) {
	hub := newTestHub()
	userID := primitive.NewObjectID()
	old := testClient(userID)
	fresh := testClient(userID)
	attach(t, hub, old)
	attach(t, hub, fresh)

	hub.Unicast(userID, Event{Type: "rideAccepted"})

	got := drain(t, fresh)
	if got.Type != "rideAccepted" {
		t.Errorf("frame type = %q, want rideAccepted", got.Type)
	}
	// The superseded connection stays open but is no longer addressable.
	assertNoFrame(t, old)
}

func TestHubUnregisterRemovesGroupMemberships(t *testing.T) {
	hub := newTestHub()
	client := testClient(primitive.NewObjectID())
	attach(t, hub, client)

	hub.Join(client, "chat_1")
	hub.unregisterClient(client)

	hub.Publish("chat_1", Event{Type: "receiveMessage"})

	if _, ok := hub.registry.Resolve(client.UserID); ok {
		t.Error("user still resolvable after disconnect")
	}
}

func TestHubUnicastDuringDisconnectChurn(t *testing.T) {
	hub := newTestHub()
	userID := primitive.NewObjectID()

	// Unicasts racing connect/disconnect cycles must degrade to the offline
	// no-op, never write to a closed send channel.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					hub.Unicast(userID, Event{Type: "newMessage"})
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		client := testClient(userID)
		client.hub = hub
		hub.registerClient(client)
		hub.unregisterClient(client)
	}

	close(done)
	wg.Wait()
}

func TestHubFullSendBufferDropsEvent(t *testing.T) {
	hub := newTestHub()
	client := testClient(primitive.NewObjectID())
	client.hub = hub
	client.send = make(chan []byte) // no buffer, nobody reading
	hub.mutex.Lock()
	hub.clients[client] = true
	hub.mutex.Unlock()
	hub.registry.Register(client.UserID, client)

	// Must not block.
	hub.Unicast(client.UserID, Event{Type: "taxiUpdate"})
}
