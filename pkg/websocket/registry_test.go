package websocket

import (
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testClient(userID primitive.ObjectID) *Client {
	return &Client{
		send:   make(chan []byte, 8),
		ID:     primitive.NewObjectID().Hex(),
		UserID: userID,
		groups: make(map[string]bool),
	}
}

func TestRegistryResolvesRegisteredClient(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()
	client := testClient(userID)

	registry.Register(userID, client)

	resolved, ok := registry.Resolve(userID)
	if !ok {
		t.Fatal("expected user to be reachable after Register")
	}
	if resolved != client {
		t.Error("resolved a different client than the one registered")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1", registry.Len())
	}
}

func TestRegistryResolveUnknownUser(t *testing.T) {
	registry := NewRegistry()

	if _, ok := registry.Resolve(primitive.NewObjectID()); ok {
		t.Error("expected unknown user to be unreachable")
	}
}

func TestRegistrySecondConnectionSupersedesFirst(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()
	first := testClient(userID)
	second := testClient(userID)

	registry.Register(userID, first)
	registry.Register(userID, second)

	resolved, ok := registry.Resolve(userID)
	if !ok || resolved != second {
		t.Fatal("expected the newer connection to represent the user")
	}
	if registry.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after supersede", registry.Len())
	}
}

func TestRegistryUnregisterSupersededConnectionKeepsNewMapping(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()
	old := testClient(userID)
	fresh := testClient(userID)

	registry.Register(userID, old)
	registry.Register(userID, fresh)

	// The old connection's cleanup arrives after the fast reconnect.
	registry.Unregister(old)

	resolved, ok := registry.Resolve(userID)
	if !ok {
		t.Fatal("user became unreachable after stale cleanup")
	}
	if resolved != fresh {
		t.Error("stale cleanup displaced the newer connection")
	}
}

func TestRegistryUnregisterOwnConnection(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()
	client := testClient(userID)

	registry.Register(userID, client)
	registry.Unregister(client)

	if _, ok := registry.Resolve(userID); ok {
		t.Error("expected user to be unreachable after Unregister")
	}
	if registry.Len() != 0 {
		t.Errorf("Len() = %d, want 0", registry.Len())
	}
}

func TestRegistryReauthenticationLeavesNoStaleMapping(t *testing.T) {
	registry := NewRegistry()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	client := testClient(alice)

	registry.Register(alice, client)
	registry.Register(bob, client)

	if _, ok := registry.Resolve(alice); ok {
		t.Error("old identity still resolvable after re-authentication")
	}
	resolved, ok := registry.Resolve(bob)
	if !ok || resolved != client {
		t.Error("new identity not resolvable after re-authentication")
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := testClient(userID)
			registry.Register(userID, client)
			registry.Resolve(userID)
			registry.Unregister(client)
		}()
	}
	wg.Wait()

	if registry.Len() > 1 {
		t.Errorf("Len() = %d after churn, want at most 1", registry.Len())
	}
}
