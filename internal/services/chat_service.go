package services

import (
	"context"
	"errors"
	"fmt"

	"taxilink/internal/models"
	"taxilink/internal/repositories/interfaces"
	"taxilink/internal/utils"
	"taxilink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// decryptionPlaceholder is what a reader sees in place of a message whose
// stored ciphertext no longer decrypts. One bad record never blocks history.
const decryptionPlaceholder = "[message could not be decrypted]"

// ChatService owns the per-ride chat channel: participant authorization is
// always re-derived from the ride request and session records, content is
// encrypted at rest, and every read path decrypts before transmission.
type ChatService interface {
	// Initiate returns the ride's chat session, creating it on first call.
	Initiate(ctx context.Context, rideRequestID, initiatorID primitive.ObjectID) (*models.ChatSession, error)

	// Send encrypts, persists, and fans the message out to the session group.
	Send(ctx context.Context, chatSessionID, senderID primitive.ObjectID, plaintext string) (*models.DecryptedMessage, error)

	// History returns all messages in creation order, decrypted, and marks the
	// requester's unread messages as read.
	History(ctx context.Context, chatSessionID, requesterID primitive.ObjectID) ([]*models.DecryptedMessage, error)

	// Authorize verifies the user is a participant and returns the session.
	Authorize(ctx context.Context, chatSessionID, userID primitive.ObjectID) (*models.ChatSession, error)
}

type chatService struct {
	chatRepo      interfaces.ChatRepository
	rideRepo      interfaces.RideRequestRepository
	taxiRepo      interfaces.TaxiRepository
	notifier      Notifier
	logger        *logger.Logger
	encryptionKey string
	locks         *keyLock
}

func NewChatService(
	chatRepo interfaces.ChatRepository,
	rideRepo interfaces.RideRequestRepository,
	taxiRepo interfaces.TaxiRepository,
	notifier Notifier,
	log *logger.Logger,
	encryptionKey string,
) ChatService {
	return &chatService{
		chatRepo:      chatRepo,
		rideRepo:      rideRepo,
		taxiRepo:      taxiRepo,
		notifier:      notifier,
		logger:        log,
		encryptionKey: encryptionKey,
		locks:         newKeyLock(),
	}
}

func (s *chatService) Initiate(ctx context.Context, rideRequestID, initiatorID primitive.ObjectID) (*models.ChatSession, error) {
	// Serialized per ride so a passenger and driver initiating at the same
	// moment share one session instead of racing the unique index.
	unlock := s.locks.Lock("ride_" + rideRequestID.Hex())
	defer unlock()

	existing, err := s.chatRepo.GetChatSessionByRideRequestID(ctx, rideRequestID)
	if err == nil {
		if !existing.IsParticipant(initiatorID) {
			return nil, fmt.Errorf("user %s is not a participant of ride %s: %w", initiatorID.Hex(), rideRequestID.Hex(), ErrForbidden)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	request, err := s.rideRepo.GetByID(ctx, rideRequestID)
	if err != nil {
		return nil, err
	}
	if request.TaxiID == nil {
		return nil, fmt.Errorf("ride %s has no assigned driver yet: %w", rideRequestID.Hex(), ErrInvalidTransition)
	}

	taxi, err := s.taxiRepo.GetByID(ctx, *request.TaxiID)
	if err != nil {
		return nil, err
	}

	session := &models.ChatSession{
		RideRequestID: rideRequestID,
		PassengerID:   request.PassengerID,
		DriverID:      taxi.DriverID,
	}
	if !session.IsParticipant(initiatorID) {
		return nil, fmt.Errorf("user %s is not a participant of ride %s: %w", initiatorID.Hex(), rideRequestID.Hex(), ErrForbidden)
	}

	if err := s.chatRepo.CreateChatSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithChatSessionID(session.ID).WithRideRequestID(rideRequestID).Info("Chat session created")

	s.notifier.Unicast(session.Counterpart(initiatorID), "newChatSession", map[string]interface{}{
		"chat_session_id": session.ID.Hex(),
		"ride_request_id": rideRequestID.Hex(),
	})

	return session, nil
}

func (s *chatService) Send(ctx context.Context, chatSessionID, senderID primitive.ObjectID, plaintext string) (*models.DecryptedMessage, error) {
	if plaintext == "" {
		return nil, fmt.Errorf("message content is required: %w", ErrInvalidTransition)
	}

	session, err := s.Authorize(ctx, chatSessionID, senderID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := utils.EncryptMessage(plaintext, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}

	// Single writer path per session: persistence order is publish order.
	unlock := s.locks.Lock(chatSessionID.Hex())
	defer unlock()

	message := &models.Message{
		ChatSessionID: chatSessionID,
		SenderID:      senderID,
		Ciphertext:    ciphertext,
	}
	if err := s.chatRepo.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	decrypted := &models.DecryptedMessage{
		ID:            message.ID,
		ChatSessionID: chatSessionID,
		SenderID:      senderID,
		Content:       plaintext,
		IsRead:        false,
		CreatedAt:     message.CreatedAt,
	}

	s.notifier.Publish(session.GroupKey(), "receiveMessage", map[string]interface{}{
		"message_id":      message.ID.Hex(),
		"chat_session_id": chatSessionID.Hex(),
		"sender_id":       senderID.Hex(),
		"content":         plaintext,
		"created_at":      message.CreatedAt,
	})
	s.notifier.Unicast(session.Counterpart(senderID), "newMessage", map[string]interface{}{
		"chat_session_id": chatSessionID.Hex(),
	})

	return decrypted, nil
}

func (s *chatService) History(ctx context.Context, chatSessionID, requesterID primitive.ObjectID) ([]*models.DecryptedMessage, error) {
	if _, err := s.Authorize(ctx, chatSessionID, requesterID); err != nil {
		return nil, err
	}

	messages, err := s.chatRepo.GetMessagesByChatSessionID(ctx, chatSessionID)
	if err != nil {
		return nil, err
	}

	decrypted := make([]*models.DecryptedMessage, 0, len(messages))
	for _, message := range messages {
		content, err := utils.DecryptMessage(message.Ciphertext, s.encryptionKey)
		if err != nil {
			s.logger.WithChatSessionID(chatSessionID).WithField("message_id", message.ID.Hex()).Warn("Undecryptable message in history")
			content = decryptionPlaceholder
		}

		decrypted = append(decrypted, &models.DecryptedMessage{
			ID:            message.ID,
			ChatSessionID: message.ChatSessionID,
			SenderID:      message.SenderID,
			Content:       content,
			IsRead:        message.IsRead,
			CreatedAt:     message.CreatedAt,
		})
	}

	// Fetching history is how an offline counterpart catches up; their unread
	// marks flip here rather than on real-time delivery.
	if err := s.chatRepo.MarkMessagesRead(ctx, chatSessionID, requesterID); err != nil {
		s.logger.WithChatSessionID(chatSessionID).WithError(err).Warn("Failed to mark messages read")
	}

	return decrypted, nil
}

func (s *chatService) Authorize(ctx context.Context, chatSessionID, userID primitive.ObjectID) (*models.ChatSession, error) {
	session, err := s.chatRepo.GetChatSessionByID(ctx, chatSessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsParticipant(userID) {
		return nil, fmt.Errorf("user %s is not a participant of chat %s: %w", userID.Hex(), chatSessionID.Hex(), ErrForbidden)
	}

	return session, nil
}
