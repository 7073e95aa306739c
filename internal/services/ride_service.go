package services

import (
	"context"
	"fmt"

	"taxilink/internal/models"
	"taxilink/internal/repositories/interfaces"
	"taxilink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor roles supplied by the authorization collaborator.
const (
	RolePassenger = "passenger"
	RoleDriver    = "driver"
)

// dispatchAttempts bounds the find-then-claim loop when several requests race
// for the same idle taxi.
const dispatchAttempts = 5

type RideService interface {
	// Create files a new ride request for the passenger and assigns the
	// longest-idle roaming taxi. Fails with ErrNoAvailableTaxi when none match.
	Create(ctx context.Context, passengerID primitive.ObjectID, rideType models.RideType, startStop, destinationStop string) (*models.RideRequest, error)

	// Accept moves an assigned request to accepted. Only the driver owning the
	// assigned taxi may accept.
	Accept(ctx context.Context, rideRequestID, driverID primitive.ObjectID) (*models.RideRequest, error)

	// Complete moves an accepted request to completed and frees the taxi.
	Complete(ctx context.Context, rideRequestID, driverID primitive.ObjectID) (*models.RideRequest, error)

	// Cancel ends a non-started request. A driver cancel triggers automatic
	// reassignment to another available taxi when one exists.
	Cancel(ctx context.Context, rideRequestID, actorID primitive.ObjectID, actorRole string) (*models.RideRequest, error)

	GetByID(ctx context.Context, rideRequestID primitive.ObjectID) (*models.RideRequest, error)
}

type rideService struct {
	rideRepo interfaces.RideRequestRepository
	taxiRepo interfaces.TaxiRepository
	notifier Notifier
	logger   *logger.Logger
	locks    *keyLock
}

func NewRideService(
	rideRepo interfaces.RideRequestRepository,
	taxiRepo interfaces.TaxiRepository,
	notifier Notifier,
	log *logger.Logger,
) RideService {
	return &rideService{
		rideRepo: rideRepo,
		taxiRepo: taxiRepo,
		notifier: notifier,
		logger:   log,
		locks:    newKeyLock(),
	}
}

func (s *rideService) Create(ctx context.Context, passengerID primitive.ObjectID, rideType models.RideType, startStop, destinationStop string) (*models.RideRequest, error) {
	if rideType != models.RideTypeRide && rideType != models.RideTypePickup {
		return nil, fmt.Errorf("unknown ride type %q: %w", rideType, ErrInvalidTransition)
	}
	if startStop == "" {
		return nil, fmt.Errorf("start stop is required: %w", ErrInvalidTransition)
	}
	if rideType == models.RideTypeRide && destinationStop == "" {
		return nil, fmt.Errorf("destination stop is required for rides: %w", ErrInvalidTransition)
	}

	// One non-terminal request per passenger. Serialized per passenger so two
	// in-flight creates cannot both pass the count check.
	unlock := s.locks.Lock("passenger_" + passengerID.Hex())
	defer unlock()

	active, err := s.rideRepo.CountActiveByPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, fmt.Errorf("passenger %s already has an active ride request: %w", passengerID.Hex(), ErrInvalidTransition)
	}

	taxi, err := s.claimTaxi(ctx, models.TaxiStatusRoaming)
	if err != nil {
		return nil, err
	}

	request := &models.RideRequest{
		PassengerID:     passengerID,
		TaxiID:          &taxi.ID,
		Type:            rideType,
		StartStop:       startStop,
		DestinationStop: destinationStop,
		Status:          models.RideStatusAssigned,
	}

	if err := s.rideRepo.Create(ctx, request); err != nil {
		// The claimed taxi must not stay parked in en_route for a request
		// that never existed.
		s.releaseTaxi(ctx, taxi.ID, models.TaxiStatusRoaming)
		return nil, err
	}

	s.logger.LogRideEvent(request.ID, "created", map[string]interface{}{
		"passenger_id": passengerID.Hex(),
		"taxi_id":      taxi.ID.Hex(),
		"start_stop":   startStop,
	})

	s.notifier.Unicast(taxi.DriverID, "newRideAssigned", map[string]interface{}{
		"ride_request_id": request.ID.Hex(),
		"start_stop":      request.StartStop,
		"destination":     request.DestinationStop,
		"type":            string(request.Type),
	})
	s.notifier.Unicast(passengerID, "rideAssigned", map[string]interface{}{
		"ride_request_id": request.ID.Hex(),
		"taxi_id":         taxi.ID.Hex(),
	})

	return request, nil
}

func (s *rideService) Accept(ctx context.Context, rideRequestID, driverID primitive.ObjectID) (*models.RideRequest, error) {
	unlock := s.locks.Lock(rideRequestID.Hex())
	defer unlock()

	request, err := s.rideRepo.GetByID(ctx, rideRequestID)
	if err != nil {
		return nil, err
	}

	if err := s.requireAssignedDriver(ctx, request, driverID); err != nil {
		return nil, err
	}

	ok, err := s.rideRepo.UpdateStatusIf(ctx, rideRequestID, models.RideStatusAssigned, models.RideStatusAccepted, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ride request %s is not assigned: %w", rideRequestID.Hex(), ErrInvalidTransition)
	}
	request.Status = models.RideStatusAccepted

	s.logger.LogRideEvent(rideRequestID, "accepted", map[string]interface{}{
		"driver_id": driverID.Hex(),
	})

	s.notifier.Unicast(request.PassengerID, "rideAccepted", map[string]interface{}{
		"ride_request_id": rideRequestID.Hex(),
	})

	return request, nil
}

func (s *rideService) Complete(ctx context.Context, rideRequestID, driverID primitive.ObjectID) (*models.RideRequest, error) {
	unlock := s.locks.Lock(rideRequestID.Hex())
	defer unlock()

	request, err := s.rideRepo.GetByID(ctx, rideRequestID)
	if err != nil {
		return nil, err
	}

	if err := s.requireAssignedDriver(ctx, request, driverID); err != nil {
		return nil, err
	}

	ok, err := s.rideRepo.UpdateStatusIf(ctx, rideRequestID, models.RideStatusAccepted, models.RideStatusCompleted, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ride request %s is not accepted: %w", rideRequestID.Hex(), ErrInvalidTransition)
	}
	request.Status = models.RideStatusCompleted

	s.releaseTaxi(ctx, *request.TaxiID, models.TaxiStatusAvailable)

	s.logger.LogRideEvent(rideRequestID, "completed", map[string]interface{}{
		"driver_id": driverID.Hex(),
	})

	s.notifier.Unicast(request.PassengerID, "rideCompleted", map[string]interface{}{
		"ride_request_id": rideRequestID.Hex(),
	})

	return request, nil
}

func (s *rideService) Cancel(ctx context.Context, rideRequestID, actorID primitive.ObjectID, actorRole string) (*models.RideRequest, error) {
	unlock := s.locks.Lock(rideRequestID.Hex())
	defer unlock()

	request, err := s.rideRepo.GetByID(ctx, rideRequestID)
	if err != nil {
		return nil, err
	}

	switch actorRole {
	case RolePassenger:
		return s.cancelByPassenger(ctx, request, actorID)
	case RoleDriver:
		return s.cancelByDriver(ctx, request, actorID)
	default:
		return nil, fmt.Errorf("unknown actor role %q: %w", actorRole, ErrUnauthorized)
	}
}

func (s *rideService) GetByID(ctx context.Context, rideRequestID primitive.ObjectID) (*models.RideRequest, error) {
	return s.rideRepo.GetByID(ctx, rideRequestID)
}

func (s *rideService) cancelByPassenger(ctx context.Context, request *models.RideRequest, passengerID primitive.ObjectID) (*models.RideRequest, error) {
	if request.PassengerID != passengerID {
		return nil, fmt.Errorf("ride request belongs to another passenger: %w", ErrUnauthorized)
	}

	from := request.Status
	if from != models.RideStatusPending && from != models.RideStatusAssigned {
		return nil, fmt.Errorf("ride request %s cannot be cancelled from %s: %w", request.ID.Hex(), from, ErrInvalidTransition)
	}

	ok, err := s.rideRepo.UpdateStatusIf(ctx, request.ID, from, models.RideStatusCancelled, map[string]interface{}{
		"cancelled_by": RolePassenger,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ride request %s changed underneath the cancel: %w", request.ID.Hex(), ErrInvalidTransition)
	}
	request.Status = models.RideStatusCancelled
	request.CancelledBy = RolePassenger

	s.logger.LogRideEvent(request.ID, "cancelled", map[string]interface{}{
		"by": RolePassenger,
	})

	if request.TaxiID != nil {
		s.releaseTaxi(ctx, *request.TaxiID, models.TaxiStatusAvailable)

		if taxi, err := s.taxiRepo.GetByID(ctx, *request.TaxiID); err == nil {
			s.notifier.Unicast(taxi.DriverID, "rideCancelled", map[string]interface{}{
				"ride_request_id": request.ID.Hex(),
				"cancelled_by":    RolePassenger,
			})
		}
	}

	return request, nil
}

// cancelByDriver backs out the current assignment and tries to hand the
// request to another available taxi before committing the cancel, so a
// request never leaves the cancelled state once it has entered it.
func (s *rideService) cancelByDriver(ctx context.Context, request *models.RideRequest, driverID primitive.ObjectID) (*models.RideRequest, error) {
	if request.Status != models.RideStatusAssigned {
		return nil, fmt.Errorf("ride request %s cannot be cancelled by driver from %s: %w", request.ID.Hex(), request.Status, ErrInvalidTransition)
	}
	if err := s.requireAssignedDriver(ctx, request, driverID); err != nil {
		return nil, err
	}

	oldTaxiID := *request.TaxiID

	replacement, err := s.claimTaxi(ctx, models.TaxiStatusAvailable)
	if err == nil {
		// Re-emit pending, then complete the assignment to the replacement in
		// the same critical section. Parking in pending would strand the
		// passenger with nobody obliged to pick the request back up.
		ok, err := s.rideRepo.UpdateStatusIf(ctx, request.ID, models.RideStatusAssigned, models.RideStatusPending, map[string]interface{}{
			"taxi_id": replacement.ID,
		})
		if err != nil {
			s.releaseTaxi(ctx, replacement.ID, models.TaxiStatusAvailable)
			return nil, err
		}
		if !ok {
			s.releaseTaxi(ctx, replacement.ID, models.TaxiStatusAvailable)
			return nil, fmt.Errorf("ride request %s changed underneath the cancel: %w", request.ID.Hex(), ErrInvalidTransition)
		}
		if _, err := s.rideRepo.UpdateStatusIf(ctx, request.ID, models.RideStatusPending, models.RideStatusAssigned, nil); err != nil {
			return nil, err
		}
		request.Status = models.RideStatusAssigned
		request.TaxiID = &replacement.ID

		s.releaseTaxi(ctx, oldTaxiID, models.TaxiStatusAvailable)

		s.logger.LogRideEvent(request.ID, "reassigned", map[string]interface{}{
			"from_taxi": oldTaxiID.Hex(),
			"to_taxi":   replacement.ID.Hex(),
		})

		s.notifier.Unicast(request.PassengerID, "rideReassigned", map[string]interface{}{
			"ride_request_id": request.ID.Hex(),
			"taxi_id":         replacement.ID.Hex(),
		})
		s.notifier.Unicast(replacement.DriverID, "newRideAssigned", map[string]interface{}{
			"ride_request_id": request.ID.Hex(),
			"start_stop":      request.StartStop,
			"destination":     request.DestinationStop,
			"type":            string(request.Type),
		})

		return request, nil
	}

	ok, err := s.rideRepo.UpdateStatusIf(ctx, request.ID, models.RideStatusAssigned, models.RideStatusCancelled, map[string]interface{}{
		"cancelled_by": RoleDriver,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ride request %s changed underneath the cancel: %w", request.ID.Hex(), ErrInvalidTransition)
	}
	request.Status = models.RideStatusCancelled
	request.CancelledBy = RoleDriver

	s.releaseTaxi(ctx, oldTaxiID, models.TaxiStatusAvailable)

	s.logger.LogRideEvent(request.ID, "cancelled", map[string]interface{}{
		"by": RoleDriver,
	})

	s.notifier.Unicast(request.PassengerID, "rideCancelled", map[string]interface{}{
		"ride_request_id": request.ID.Hex(),
		"cancelled_by":    RoleDriver,
	})

	return request, nil
}

// requireAssignedDriver verifies the acting driver owns the taxi assigned to
// the request. Ownership is always re-derived from the taxi record.
func (s *rideService) requireAssignedDriver(ctx context.Context, request *models.RideRequest, driverID primitive.ObjectID) error {
	if request.TaxiID == nil {
		return fmt.Errorf("ride request %s has no assigned taxi: %w", request.ID.Hex(), ErrInvalidTransition)
	}

	taxi, err := s.taxiRepo.GetByID(ctx, *request.TaxiID)
	if err != nil {
		return err
	}
	if taxi.DriverID != driverID {
		return fmt.Errorf("driver %s does not own taxi %s: %w", driverID.Hex(), taxi.ID.Hex(), ErrUnauthorized)
	}

	return nil
}

// claimTaxi picks the longest-idle taxi in the given pool and claims it for
// dispatch. The claim is conditional, so racing dispatches retry on the next
// idle candidate instead of double-booking one taxi.
func (s *rideService) claimTaxi(ctx context.Context, pool models.TaxiStatus) (*models.Taxi, error) {
	for attempt := 0; attempt < dispatchAttempts; attempt++ {
		taxi, err := s.taxiRepo.FindLongestIdleByStatus(ctx, pool)
		if err != nil {
			return nil, err
		}

		claimed, err := s.taxiRepo.ClaimForDispatch(ctx, taxi.ID, pool, models.TaxiStatusEnRoute)
		if err != nil {
			return nil, err
		}
		if claimed {
			taxi.Status = models.TaxiStatusEnRoute
			return taxi, nil
		}
	}

	return nil, fmt.Errorf("could not claim a taxi from the %s pool: %w", pool, ErrNoAvailableTaxi)
}

func (s *rideService) releaseTaxi(ctx context.Context, taxiID primitive.ObjectID, status models.TaxiStatus) {
	if err := s.taxiRepo.Update(ctx, taxiID, map[string]interface{}{"status": status}); err != nil {
		s.logger.WithTaxiID(taxiID).WithError(err).Warn("Failed to release taxi")
	}
}
