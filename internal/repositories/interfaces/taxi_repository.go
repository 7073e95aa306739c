package interfaces

import (
	"context"

	"taxilink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaxiRepository interface {
	Create(ctx context.Context, taxi *models.Taxi) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Taxi, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error

	// FindLongestIdleByStatus returns the taxi in the given status with the
	// oldest updated_at. The longest-idle taxi is dispatched first.
	FindLongestIdleByStatus(ctx context.Context, status models.TaxiStatus) (*models.Taxi, error)

	// ClaimForDispatch moves the taxi from -> to only while its stored status
	// still equals from, so concurrent dispatches cannot claim the same taxi.
	ClaimForDispatch(ctx context.Context, id primitive.ObjectID, from, to models.TaxiStatus) (bool, error)

	// UpdateLoadIf sets current_load only when newLoad fits the stored
	// capacity; the write itself enforces the occupancy invariant.
	UpdateLoadIf(ctx context.Context, id primitive.ObjectID, newLoad int) (bool, error)
}
