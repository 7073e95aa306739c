package interfaces

import (
	"context"
	"time"

	"taxilink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatRepository interface {
	// Chat sessions
	CreateChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSessionByID(ctx context.Context, id primitive.ObjectID) (*models.ChatSession, error)
	GetChatSessionByRideRequestID(ctx context.Context, rideRequestID primitive.ObjectID) (*models.ChatSession, error)
	TouchLastMessageAt(ctx context.Context, id primitive.ObjectID, at time.Time) error

	// Messages. Messages are immutable; there is no update or delete.
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessagesByChatSessionID(ctx context.Context, chatSessionID primitive.ObjectID) ([]*models.Message, error)
	MarkMessagesRead(ctx context.Context, chatSessionID, readerID primitive.ObjectID) error
}
