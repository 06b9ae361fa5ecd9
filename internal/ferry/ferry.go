package ferry

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid ferry input")
	ErrInUse        = errors.New("fare type is referenced by bookings")
)

// FareKind distinguishes vehicle fares from per-passenger fares.
type FareKind string

const (
	KindVehicle   FareKind = "vehicle"
	KindPassenger FareKind = "passenger"
)

func ParseFareKind(s string) (FareKind, error) {
	switch FareKind(s) {
	case KindVehicle, KindPassenger:
		return FareKind(s), nil
	default:
		return "", fmt.Errorf("%w: unknown fare kind %q", ErrInvalidInput, s)
	}
}

type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

type Customer struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Email     string
	CreatedAt time.Time
}

type FareType struct {
	ID        uuid.UUID
	Kind      FareKind
	Name      string
	Fare      decimal.Decimal
	CreatedAt time.Time
}

type Booking struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	VehicleTypeID   *uuid.UUID
	PassengerTypeID uuid.UUID
	Passengers      int
	Route           string
	TravelDate      time.Time
	Total           decimal.Decimal
	Status          BookingStatus
	CreatedAt       time.Time
}

// BookingTotal is the vehicle fare (if any) plus the passenger fare for every
// passenger.
func BookingTotal(vehicle *FareType, passenger *FareType, passengers int) decimal.Decimal {
	total := passenger.Fare.Mul(decimal.NewFromInt(int64(passengers)))
	if vehicle != nil {
		total = total.Add(vehicle.Fare)
	}

	return total.Round(2)
}
