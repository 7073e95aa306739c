package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type RideType string

const (
	RideStatusPending   RideStatus = "pending"
	RideStatusAssigned  RideStatus = "assigned"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"

	RideTypeRide   RideType = "ride"
	RideTypePickup RideType = "pickup"
)

type RideRequest struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	PassengerID     primitive.ObjectID  `json:"passenger_id" bson:"passenger_id" validate:"required"`
	TaxiID          *primitive.ObjectID `json:"taxi_id" bson:"taxi_id"`
	Type            RideType            `json:"type" bson:"type" validate:"required"`
	StartStop       string              `json:"start_stop" bson:"start_stop" validate:"required"`
	DestinationStop string              `json:"destination_stop" bson:"destination_stop"`
	Status          RideStatus          `json:"status" bson:"status" default:"pending"`
	CancelledBy     string              `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CreatedAt       time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" bson:"updated_at"`
}

// IsTerminal reports whether the request reached a final state. Terminal
// requests are immutable.
func (r *RideRequest) IsTerminal() bool {
	return r.Status == RideStatusCompleted || r.Status == RideStatusCancelled
}

// ActiveStatuses are the states counted against the one-active-ride-per-passenger
// limit enforced at creation time.
func ActiveStatuses() []RideStatus {
	return []RideStatus{RideStatusPending, RideStatusAssigned, RideStatusAccepted}
}
