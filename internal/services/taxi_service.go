package services

import (
	"context"
	"fmt"

	"taxilink/internal/models"
	"taxilink/internal/repositories/interfaces"
	"taxilink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaxiGroupKey is the channel router group watchers of one taxi join.
func TaxiGroupKey(taxiID primitive.ObjectID) string {
	return "taxi_" + taxiID.Hex()
}

// TaxiService validates single-field taxi mutations and fans the resulting
// state out to that taxi's watchers. There is no state machine here beyond
// the occupancy invariant; ordering across taxis is not guaranteed.
type TaxiService interface {
	UpdateStatus(ctx context.Context, taxiID, driverID primitive.ObjectID, newStatus models.TaxiStatus) (*models.Taxi, error)
	UpdateLoad(ctx context.Context, taxiID, driverID primitive.ObjectID, newLoad int) (*models.Taxi, error)
	UpdateStop(ctx context.Context, taxiID, driverID primitive.ObjectID, newStop string) (*models.Taxi, error)
	GetByID(ctx context.Context, taxiID primitive.ObjectID) (*models.Taxi, error)
}

type taxiService struct {
	taxiRepo interfaces.TaxiRepository
	notifier Notifier
	logger   *logger.Logger
	locks    *keyLock
}

func NewTaxiService(taxiRepo interfaces.TaxiRepository, notifier Notifier, log *logger.Logger) TaxiService {
	return &taxiService{
		taxiRepo: taxiRepo,
		notifier: notifier,
		logger:   log,
		locks:    newKeyLock(),
	}
}

var validTaxiStatuses = map[models.TaxiStatus]bool{
	models.TaxiStatusWaiting:      true,
	models.TaxiStatusAvailable:    true,
	models.TaxiStatusRoaming:      true,
	models.TaxiStatusEnRoute:      true,
	models.TaxiStatusAlmostFull:   true,
	models.TaxiStatusFull:         true,
	models.TaxiStatusOnTrip:       true,
	models.TaxiStatusNotAvailable: true,
}

func (s *taxiService) UpdateStatus(ctx context.Context, taxiID, driverID primitive.ObjectID, newStatus models.TaxiStatus) (*models.Taxi, error) {
	if !validTaxiStatuses[newStatus] {
		return nil, fmt.Errorf("unknown taxi status %q: %w", newStatus, ErrInvalidTransition)
	}

	unlock := s.locks.Lock(taxiID.Hex())
	defer unlock()

	taxi, err := s.ownedTaxi(ctx, taxiID, driverID)
	if err != nil {
		return nil, err
	}

	if err := s.taxiRepo.Update(ctx, taxiID, map[string]interface{}{"status": newStatus}); err != nil {
		return nil, err
	}
	taxi.Status = newStatus

	s.logger.LogTaxiEvent(taxiID, "status_changed", map[string]interface{}{
		"status": string(newStatus),
	})

	s.broadcast(taxi)

	return taxi, nil
}

func (s *taxiService) UpdateLoad(ctx context.Context, taxiID, driverID primitive.ObjectID, newLoad int) (*models.Taxi, error) {
	unlock := s.locks.Lock(taxiID.Hex())
	defer unlock()

	taxi, err := s.ownedTaxi(ctx, taxiID, driverID)
	if err != nil {
		return nil, err
	}

	ok, err := s.taxiRepo.UpdateLoadIf(ctx, taxiID, newLoad)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("load %d does not fit taxi %s (capacity %d): %w", newLoad, taxiID.Hex(), taxi.Capacity, ErrCapacityExceeded)
	}
	taxi.CurrentLoad = newLoad

	s.logger.LogTaxiEvent(taxiID, "load_changed", map[string]interface{}{
		"current_load": newLoad,
		"capacity":     taxi.Capacity,
	})

	s.broadcast(taxi)

	return taxi, nil
}

func (s *taxiService) UpdateStop(ctx context.Context, taxiID, driverID primitive.ObjectID, newStop string) (*models.Taxi, error) {
	if newStop == "" {
		return nil, fmt.Errorf("stop name is required: %w", ErrInvalidTransition)
	}

	unlock := s.locks.Lock(taxiID.Hex())
	defer unlock()

	taxi, err := s.ownedTaxi(ctx, taxiID, driverID)
	if err != nil {
		return nil, err
	}

	if err := s.taxiRepo.Update(ctx, taxiID, map[string]interface{}{"current_stop": newStop}); err != nil {
		return nil, err
	}
	taxi.CurrentStop = newStop

	s.logger.LogTaxiEvent(taxiID, "stop_changed", map[string]interface{}{
		"current_stop": newStop,
	})

	s.broadcast(taxi)

	return taxi, nil
}

func (s *taxiService) GetByID(ctx context.Context, taxiID primitive.ObjectID) (*models.Taxi, error) {
	return s.taxiRepo.GetByID(ctx, taxiID)
}

// ownedTaxi loads the taxi and verifies the acting driver owns it. Every
// mutation path goes through this gate.
func (s *taxiService) ownedTaxi(ctx context.Context, taxiID, driverID primitive.ObjectID) (*models.Taxi, error) {
	taxi, err := s.taxiRepo.GetByID(ctx, taxiID)
	if err != nil {
		return nil, err
	}
	if taxi.DriverID != driverID {
		return nil, fmt.Errorf("driver %s does not own taxi %s: %w", driverID.Hex(), taxiID.Hex(), ErrUnauthorized)
	}

	return taxi, nil
}

func (s *taxiService) broadcast(taxi *models.Taxi) {
	s.notifier.Publish(TaxiGroupKey(taxi.ID), "taxiUpdate", map[string]interface{}{
		"taxi_id":      taxi.ID.Hex(),
		"status":       string(taxi.Status),
		"current_load": taxi.CurrentLoad,
		"capacity":     taxi.Capacity,
		"current_stop": taxi.CurrentStop,
	})
}
