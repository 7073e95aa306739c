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
)

type rideRequestRepository struct {
	collection *mongo.Collection
}

func NewRideRequestRepository(db *mongo.Database) interfaces.RideRequestRepository {
	return &rideRequestRepository{
		collection: db.Collection("ride_requests"),
	}
}

func (r *rideRequestRepository) Create(ctx context.Context, request *models.RideRequest) error {
	request.ID = primitive.NewObjectID()
	request.CreatedAt = time.Now()
	request.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to create ride request: %w", err)
	}

	return nil
}

func (r *rideRequestRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.RideRequest, error) {
	var request models.RideRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("ride request %s: %w", id.Hex(), services.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ride request: %w", err)
	}

	return &request, nil
}

func (r *rideRequestRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update ride request: %w", err)
	}

	return nil
}

// UpdateStatusIf is the conditional write behind every lifecycle transition.
// The status precondition rides in the filter, so check and write are one
// storage operation: a concurrent transition that got there first leaves
// ModifiedCount at zero.
func (r *rideRequestRepository) UpdateStatusIf(ctx context.Context, id primitive.ObjectID, from, to models.RideStatus, updates map[string]interface{}) (bool, error) {
	set := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range updates {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition ride request: %w", err)
	}

	return result.ModifiedCount > 0, nil
}

func (r *rideRequestRepository) CountActiveByPassenger(ctx context.Context, passengerID primitive.ObjectID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"passenger_id": passengerID,
		"status":       bson.M{"$in": models.ActiveStatuses()},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active ride requests: %w", err)
	}

	return count, nil
}
