package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the dispatch core depends on. All index
// builds are idempotent; running this on every startup is safe.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		"taxis": {
			// Taxi assignment scans roaming taxis oldest-first.
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
			{Keys: bson.D{{Key: "driver_id", Value: 1}}},
		},
		"ride_requests": {
			// One non-terminal request per passenger is checked on create.
			{Keys: bson.D{{Key: "passenger_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "taxi_id", Value: 1}}},
		},
		"chat_sessions": {
			// One session per ride, enforced at the storage layer.
			{
				Keys:    bson.D{{Key: "ride_request_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		"messages": {
			// History replays in creation order per session.
			{Keys: bson.D{{Key: "chat_session_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}

	return nil
}
