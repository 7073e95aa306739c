package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"taxilink/internal/models"
	"taxilink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestLogger() *logger.Logger {
	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	if err != nil {
		panic(err)
	}
	log.SetOutput(io.Discard)
	return log
}

// fakeNotifier records everything published through it.
type notification struct {
	groupKey  string
	userID    primitive.ObjectID
	eventType string
	data      map[string]interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *fakeNotifier) Publish(groupKey string, eventType string, data map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{groupKey: groupKey, eventType: eventType, data: data})
}

func (n *fakeNotifier) Unicast(userID primitive.ObjectID, eventType string, data map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{userID: userID, eventType: eventType, data: data})
}

func (n *fakeNotifier) ofType(eventType string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var matched []notification
	for _, event := range n.events {
		if event.eventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// fakeTaxiRepo is an in-memory TaxiRepository with the same conditional-write
// semantics as the persistent one.
type fakeTaxiRepo struct {
	mu    sync.Mutex
	taxis map[primitive.ObjectID]*models.Taxi
	order []primitive.ObjectID
}

func newFakeTaxiRepo() *fakeTaxiRepo {
	return &fakeTaxiRepo{taxis: make(map[primitive.ObjectID]*models.Taxi)}
}

func (r *fakeTaxiRepo) Create(_ context.Context, taxi *models.Taxi) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if taxi.ID.IsZero() {
		taxi.ID = primitive.NewObjectID()
	}
	if taxi.UpdatedAt.IsZero() {
		taxi.UpdatedAt = time.Now()
	}
	r.taxis[taxi.ID] = taxi
	r.order = append(r.order, taxi.ID)
	return nil
}

func (r *fakeTaxiRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Taxi, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taxi, ok := r.taxis[id]
	if !ok {
		return nil, fmt.Errorf("taxi %s: %w", id.Hex(), ErrNotFound)
	}
	copied := *taxi
	return &copied, nil
}

func (r *fakeTaxiRepo) Update(_ context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	taxi, ok := r.taxis[id]
	if !ok {
		return fmt.Errorf("taxi %s: %w", id.Hex(), ErrNotFound)
	}
	applyTaxiUpdates(taxi, updates)
	taxi.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTaxiRepo) FindLongestIdleByStatus(_ context.Context, status models.TaxiStatus) (*models.Taxi, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *models.Taxi
	for _, id := range r.order {
		taxi := r.taxis[id]
		if taxi.Status != status {
			continue
		}
		if oldest == nil || taxi.UpdatedAt.Before(oldest.UpdatedAt) {
			oldest = taxi
		}
	}
	if oldest == nil {
		return nil, fmt.Errorf("no taxi in status %s: %w", status, ErrNoAvailableTaxi)
	}
	copied := *oldest
	return &copied, nil
}

func (r *fakeTaxiRepo) ClaimForDispatch(_ context.Context, id primitive.ObjectID, from, to models.TaxiStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taxi, ok := r.taxis[id]
	if !ok || taxi.Status != from {
		return false, nil
	}
	taxi.Status = to
	taxi.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeTaxiRepo) UpdateLoadIf(_ context.Context, id primitive.ObjectID, newLoad int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	taxi, ok := r.taxis[id]
	if !ok {
		return false, fmt.Errorf("taxi %s: %w", id.Hex(), ErrNotFound)
	}
	if newLoad < 0 || newLoad > taxi.Capacity {
		return false, nil
	}
	taxi.CurrentLoad = newLoad
	taxi.UpdatedAt = time.Now()
	return true, nil
}

func applyTaxiUpdates(taxi *models.Taxi, updates map[string]interface{}) {
	for field, value := range updates {
		switch field {
		case "status":
			taxi.Status = value.(models.TaxiStatus)
		case "current_stop":
			taxi.CurrentStop = value.(string)
		case "current_load":
			taxi.CurrentLoad = value.(int)
		}
	}
}

// fakeRideRepo is an in-memory RideRequestRepository.
type fakeRideRepo struct {
	mu       sync.Mutex
	requests map[primitive.ObjectID]*models.RideRequest
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{requests: make(map[primitive.ObjectID]*models.RideRequest)}
}

func (r *fakeRideRepo) Create(_ context.Context, request *models.RideRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	copied := *request
	r.requests[request.ID] = &copied
	return nil
}

func (r *fakeRideRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.RideRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("ride request %s: %w", id.Hex(), ErrNotFound)
	}
	copied := *request
	return &copied, nil
}

func (r *fakeRideRepo) Update(_ context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return fmt.Errorf("ride request %s: %w", id.Hex(), ErrNotFound)
	}
	applyRideUpdates(request, updates)
	request.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRideRepo) UpdateStatusIf(_ context.Context, id primitive.ObjectID, from, to models.RideStatus, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok || request.Status != from {
		return false, nil
	}
	request.Status = to
	applyRideUpdates(request, updates)
	request.UpdatedAt = time.Now()
	return true, nil
}

func (r *fakeRideRepo) CountActiveByPassenger(_ context.Context, passengerID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, request := range r.requests {
		if request.PassengerID == passengerID && !request.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func applyRideUpdates(request *models.RideRequest, updates map[string]interface{}) {
	for field, value := range updates {
		switch field {
		case "cancelled_by":
			request.CancelledBy = value.(string)
		case "taxi_id":
			taxiID := value.(primitive.ObjectID)
			request.TaxiID = &taxiID
		}
	}
}

// fakeChatRepo is an in-memory ChatRepository. Message order is insertion
// order, matching the created_at ascending sort of the persistent one.
type fakeChatRepo struct {
	mu       sync.Mutex
	sessions map[primitive.ObjectID]*models.ChatSession
	byRide   map[primitive.ObjectID]primitive.ObjectID
	messages []*models.Message
	clock    time.Time
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		sessions: make(map[primitive.ObjectID]*models.ChatSession),
		byRide:   make(map[primitive.ObjectID]primitive.ObjectID),
		clock:    time.Now(),
	}
}

func (r *fakeChatRepo) CreateChatSession(_ context.Context, session *models.ChatSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byRide[session.RideRequestID]; exists {
		return fmt.Errorf("chat session for ride %s already exists", session.RideRequestID.Hex())
	}
	if session.ID.IsZero() {
		session.ID = primitive.NewObjectID()
	}
	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	r.byRide[session.RideRequestID] = session.ID
	return nil
}

func (r *fakeChatRepo) GetChatSessionByID(_ context.Context, id primitive.ObjectID) (*models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("chat session %s: %w", id.Hex(), ErrNotFound)
	}
	copied := *session
	return &copied, nil
}

func (r *fakeChatRepo) GetChatSessionByRideRequestID(_ context.Context, rideRequestID primitive.ObjectID) (*models.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.byRide[rideRequestID]
	if !ok {
		return nil, fmt.Errorf("chat session for ride %s: %w", rideRequestID.Hex(), ErrNotFound)
	}
	copied := *r.sessions[sessionID]
	return &copied, nil
}

func (r *fakeChatRepo) TouchLastMessageAt(_ context.Context, id primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[id]; ok {
		session.LastMessageAt = &at
	}
	return nil
}

func (r *fakeChatRepo) CreateMessage(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	// Strictly increasing timestamps keep ordering unambiguous.
	r.clock = r.clock.Add(time.Millisecond)
	message.CreatedAt = r.clock
	copied := *message
	r.messages = append(r.messages, &copied)
	if session, ok := r.sessions[message.ChatSessionID]; ok {
		at := message.CreatedAt
		session.LastMessageAt = &at
	}
	return nil
}

func (r *fakeChatRepo) GetMessagesByChatSessionID(_ context.Context, chatSessionID primitive.ObjectID) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*models.Message
	for _, message := range r.messages {
		if message.ChatSessionID == chatSessionID {
			copied := *message
			matched = append(matched, &copied)
		}
	}
	return matched, nil
}

func (r *fakeChatRepo) MarkMessagesRead(_ context.Context, chatSessionID, readerID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.ChatSessionID == chatSessionID && message.SenderID != readerID {
			message.IsRead = true
		}
	}
	return nil
}

func (r *fakeChatRepo) corruptMessage(id primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, message := range r.messages {
		if message.ID == id {
			message.Ciphertext = "not a valid ciphertext"
		}
	}
}
