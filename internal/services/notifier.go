package services

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is the channel router surface services publish through. It is
// injected everywhere; no service reaches for process-wide connection state.
// Both methods are best-effort: an offline recipient is a silent no-op and
// the caller is never told whether delivery happened.
type Notifier interface {
	Publish(groupKey string, eventType string, data map[string]interface{})
	Unicast(userID primitive.ObjectID, eventType string, data map[string]interface{})
}
