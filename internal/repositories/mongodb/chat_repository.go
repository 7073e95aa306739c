package mongodb

import (
	"context"
	"fmt"
	"time"

	"taxilink/internal/models"
	"taxilink/internal/repositories/interfaces"
	"taxilink/internal/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type chatRepository struct {
	sessionsCollection *mongo.Collection
	messagesCollection *mongo.Collection
	cache              services.CacheService
}

func NewChatRepository(db *mongo.Database, cache services.CacheService) interfaces.ChatRepository {
	return &chatRepository{
		sessionsCollection: db.Collection("chat_sessions"),
		messagesCollection: db.Collection("messages"),
		cache:              cache,
	}
}

func (r *chatRepository) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()

	_, err := r.sessionsCollection.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}

	r.cacheSession(ctx, session)

	return nil
}

func (r *chatRepository) GetChatSessionByID(ctx context.Context, id primitive.ObjectID) (*models.ChatSession, error) {
	if session := r.getSessionFromCache(ctx, id.Hex()); session != nil {
		return session, nil
	}

	var session models.ChatSession
	err := r.sessionsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("chat session %s: %w", id.Hex(), services.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}

	r.cacheSession(ctx, &session)

	return &session, nil
}

func (r *chatRepository) GetChatSessionByRideRequestID(ctx context.Context, rideRequestID primitive.ObjectID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.sessionsCollection.FindOne(ctx, bson.M{"ride_request_id": rideRequestID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("chat session for ride %s: %w", rideRequestID.Hex(), services.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat session by ride request: %w", err)
	}

	return &session, nil
}

func (r *chatRepository) TouchLastMessageAt(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.sessionsCollection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_message_at": at, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to touch chat session: %w", err)
	}

	r.invalidateSession(ctx, id.Hex())

	return nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()

	// Message insert and session bump happen in one transaction so
	// last_message_at never points before the newest stored message.
	session, err := r.sessionsCollection.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if _, err := r.messagesCollection.InsertOne(sc, message); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		_, err := r.sessionsCollection.UpdateOne(
			sc,
			bson.M{"_id": message.ChatSessionID},
			bson.M{"$set": bson.M{
				"last_message_at": message.CreatedAt,
				"updated_at":      time.Now(),
			}},
		)
		if err != nil {
			return fmt.Errorf("failed to update chat session: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	r.invalidateSession(ctx, message.ChatSessionID.Hex())

	return nil
}

func (r *chatRepository) GetMessagesByChatSessionID(ctx context.Context, chatSessionID primitive.ObjectID) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.messagesCollection.Find(ctx, bson.M{"chat_session_id": chatSessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var message models.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *chatRepository) MarkMessagesRead(ctx context.Context, chatSessionID, readerID primitive.ObjectID) error {
	_, err := r.messagesCollection.UpdateMany(
		ctx,
		bson.M{
			"chat_session_id": chatSessionID,
			"sender_id":       bson.M{"$ne": readerID},
			"is_read":         false,
		},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	return nil
}

// Cache operations
func (r *chatRepository) cacheSession(ctx context.Context, session *models.ChatSession) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("chat_session:%s", session.ID.Hex())
		r.cache.Set(ctx, cacheKey, session, 15*time.Minute)
	}
}

func (r *chatRepository) getSessionFromCache(ctx context.Context, sessionID string) *models.ChatSession {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("chat_session:%s", sessionID)
	var session models.ChatSession
	if err := r.cache.Get(ctx, cacheKey, &session); err != nil {
		return nil
	}

	return &session
}

func (r *chatRepository) invalidateSession(ctx context.Context, sessionID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("chat_session:%s", sessionID)
		r.cache.Delete(ctx, cacheKey)
	}
}
