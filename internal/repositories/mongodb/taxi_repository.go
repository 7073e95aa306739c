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

type taxiRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

func NewTaxiRepository(db *mongo.Database, cache services.CacheService) interfaces.TaxiRepository {
	return &taxiRepository{
		collection: db.Collection("taxis"),
		cache:      cache,
	}
}

func (r *taxiRepository) Create(ctx context.Context, taxi *models.Taxi) error {
	taxi.ID = primitive.NewObjectID()
	taxi.CreatedAt = time.Now()
	taxi.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, taxi)
	if err != nil {
		return fmt.Errorf("failed to create taxi: %w", err)
	}

	return nil
}

func (r *taxiRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Taxi, error) {
	if taxi := r.getFromCache(ctx, id.Hex()); taxi != nil {
		return taxi, nil
	}

	var taxi models.Taxi
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&taxi)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("taxi %s: %w", id.Hex(), services.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get taxi: %w", err)
	}

	r.cacheTaxi(ctx, &taxi)

	return &taxi, nil
}

func (r *taxiRepository) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()

	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return fmt.Errorf("failed to update taxi: %w", err)
	}

	r.invalidate(ctx, id.Hex())

	return nil
}

func (r *taxiRepository) FindLongestIdleByStatus(ctx context.Context, status models.TaxiStatus) (*models.Taxi, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: 1}})

	var taxi models.Taxi
	err := r.collection.FindOne(ctx, bson.M{"status": status}, opts).Decode(&taxi)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("no taxi with status %s: %w", status, services.ErrNoAvailableTaxi)
		}
		return nil, fmt.Errorf("failed to find taxi by status: %w", err)
	}

	return &taxi, nil
}

func (r *taxiRepository) ClaimForDispatch(ctx context.Context, id primitive.ObjectID, from, to models.TaxiStatus) (bool, error) {
	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim taxi: %w", err)
	}

	r.invalidate(ctx, id.Hex())

	return result.ModifiedCount > 0, nil
}

// UpdateLoadIf writes current_load with the capacity bound in the filter.
// Occupancy can never exceed capacity, no matter how updates interleave.
func (r *taxiRepository) UpdateLoadIf(ctx context.Context, id primitive.ObjectID, newLoad int) (bool, error) {
	if newLoad < 0 {
		return false, nil
	}

	result, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": id, "capacity": bson.M{"$gte": newLoad}},
		bson.M{"$set": bson.M{"current_load": newLoad, "updated_at": time.Now()}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to update taxi load: %w", err)
	}

	r.invalidate(ctx, id.Hex())

	return result.MatchedCount > 0, nil
}

// Cache operations
func (r *taxiRepository) cacheTaxi(ctx context.Context, taxi *models.Taxi) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("taxi:%s", taxi.ID.Hex())
		r.cache.Set(ctx, cacheKey, taxi, 5*time.Minute)
	}
}

func (r *taxiRepository) getFromCache(ctx context.Context, taxiID string) *models.Taxi {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("taxi:%s", taxiID)
	var taxi models.Taxi
	if err := r.cache.Get(ctx, cacheKey, &taxi); err != nil {
		return nil
	}

	return &taxi
}

func (r *taxiRepository) invalidate(ctx context.Context, taxiID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("taxi:%s", taxiID)
		r.cache.Delete(ctx, cacheKey)
	}
}
