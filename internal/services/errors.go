package services

import "errors"

// Error taxonomy shared by the dispatch core. Handlers classify with
// errors.Is; repositories wrap these with entity context.
var (
	// ErrNotFound marks a missing RideRequest, ChatSession, or Taxi.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized marks an actor who does not own the resource it is
	// trying to mutate (e.g. a driver completing someone else's ride).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks an actor who is not a participant of a chat session.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition marks a state machine precondition failure.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCapacityExceeded marks a load update past the taxi's capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrNoAvailableTaxi marks a dispatch attempt with no eligible taxi.
	ErrNoAvailableTaxi = errors.New("no available taxi")
)
