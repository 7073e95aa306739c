package interfaces

import (
	"context"

	"taxilink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRequestRepository interface {
	Create(ctx context.Context, request *models.RideRequest) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.RideRequest, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// UpdateStatusIf moves status from -> to only while the stored status still
	// equals from, applying extra field updates in the same write. It reports
	// false when the precondition no longer holds, so two drivers racing the
	// same transition cannot both win.
	UpdateStatusIf(ctx context.Context, id primitive.ObjectID, from, to models.RideStatus, updates map[string]interface{}) (bool, error)

	// CountActiveByPassenger counts the passenger's non-terminal requests.
	CountActiveByPassenger(ctx context.Context, passengerID primitive.ObjectID) (int64, error)
}
