package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatSession is the per-ride chat channel. One session per ride request,
// created lazily on first initiation and retained for history.
type ChatSession struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideRequestID primitive.ObjectID `json:"ride_request_id" bson:"ride_request_id" validate:"required"`
	PassengerID   primitive.ObjectID `json:"passenger_id" bson:"passenger_id" validate:"required"`
	DriverID      primitive.ObjectID `json:"driver_id" bson:"driver_id" validate:"required"`
	LastMessageAt *time.Time         `json:"last_message_at" bson:"last_message_at"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// IsParticipant reports whether userID is the session's passenger or driver.
// Authorization always re-derives from this record, never from group membership.
func (c *ChatSession) IsParticipant(userID primitive.ObjectID) bool {
	return c.PassengerID == userID || c.DriverID == userID
}

// Counterpart returns the other participant of the session.
func (c *ChatSession) Counterpart(userID primitive.ObjectID) primitive.ObjectID {
	if c.PassengerID == userID {
		return c.DriverID
	}
	return c.PassengerID
}

// GroupKey is the channel router group for this session.
func (c *ChatSession) GroupKey() string {
	return "chat_" + c.ID.Hex()
}
