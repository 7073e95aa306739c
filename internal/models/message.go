package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message content is stored only in encrypted form (hex(iv) + ":" + hex(ciphertext)).
// Plaintext exists transiently in memory during send and read. Messages are
// immutable once created.
type Message struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ChatSessionID primitive.ObjectID `json:"chat_session_id" bson:"chat_session_id" validate:"required"`
	SenderID      primitive.ObjectID `json:"sender_id" bson:"sender_id" validate:"required"`
	Ciphertext    string             `json:"-" bson:"ciphertext"`
	IsRead        bool               `json:"is_read" bson:"is_read" default:"false"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// DecryptedMessage is the read-side projection of a Message. Ciphertext is
// never returned to any client; every read path decrypts before transmission.
type DecryptedMessage struct {
	ID            primitive.ObjectID `json:"id"`
	ChatSessionID primitive.ObjectID `json:"chat_session_id"`
	SenderID      primitive.ObjectID `json:"sender_id"`
	Content       string             `json:"content"`
	IsRead        bool               `json:"is_read"`
	CreatedAt     time.Time          `json:"created_at"`
}
