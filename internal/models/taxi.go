package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaxiStatus string

const (
	TaxiStatusWaiting      TaxiStatus = "waiting"
	TaxiStatusAvailable    TaxiStatus = "available"
	TaxiStatusRoaming      TaxiStatus = "roaming"
	TaxiStatusEnRoute      TaxiStatus = "en_route"
	TaxiStatusAlmostFull   TaxiStatus = "almost_full"
	TaxiStatusFull         TaxiStatus = "full"
	TaxiStatusOnTrip       TaxiStatus = "on_trip"
	TaxiStatusNotAvailable TaxiStatus = "not_available"
)

type Taxi struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	DriverID    primitive.ObjectID  `json:"driver_id" bson:"driver_id" validate:"required"`
	Capacity    int                 `json:"capacity" bson:"capacity" validate:"required,min=1"`
	CurrentLoad int                 `json:"current_load" bson:"current_load" default:"0"`
	Status      TaxiStatus          `json:"status" bson:"status" default:"not_available"`
	CurrentStop string              `json:"current_stop" bson:"current_stop"`
	RouteID     *primitive.ObjectID `json:"route_id" bson:"route_id"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" bson:"updated_at"`
}

// HasSeats reports whether the taxi can take one more passenger.
func (t *Taxi) HasSeats() bool {
	return t.CurrentLoad < t.Capacity
}
