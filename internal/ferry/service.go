package ferry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ferry
type Repository interface {
	CreateCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, c *Customer) error
	// DeleteCustomer also removes the customer's bookings.
	DeleteCustomer(ctx context.Context, id uuid.UUID) error

	CreateFareType(ctx context.Context, f *FareType) error
	GetFareType(ctx context.Context, id uuid.UUID) (*FareType, error)
	ListFareTypes(ctx context.Context, kind *FareKind) ([]*FareType, error)
	UpdateFareType(ctx context.Context, f *FareType) error
	DeleteFareType(ctx context.Context, id uuid.UUID) error

	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, customerID uuid.UUID) ([]*Booking, error)
	SetBookingStatus(ctx context.Context, id uuid.UUID, status BookingStatus) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CustomerParams struct {
	Name  string
	Phone string
	Email string
}

func (p CustomerParams) customer() (*Customer, error) {
	c := &Customer{
		Name:  strings.TrimSpace(p.Name),
		Phone: strings.TrimSpace(p.Phone),
		Email: strings.TrimSpace(p.Email),
	}

	if c.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}

	return c, nil
}

func (s *Service) CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error) {
	c, err := params.customer()
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]*Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// UpdateCustomer replaces the customer's contact details.
func (s *Service) UpdateCustomer(ctx context.Context, id uuid.UUID, params CustomerParams) (*Customer, error) {
	c, err := params.customer()
	if err != nil {
		return nil, err
	}

	c.ID = id

	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCustomer(ctx, id)
}

type FareTypeParams struct {
	Kind FareKind
	Name string
	Fare decimal.Decimal
}

func (p FareTypeParams) fareType() (*FareType, error) {
	if _, err := ParseFareKind(string(p.Kind)); err != nil {
		return nil, err
	}

	f := &FareType{
		Kind: p.Kind,
		Name: strings.TrimSpace(p.Name),
		Fare: p.Fare.Round(2),
	}

	if f.Name == "" {
		return nil, fmt.Errorf("%w: fare type name is required", ErrInvalidInput)
	}

	if f.Fare.IsNegative() {
		return nil, fmt.Errorf("%w: fare must not be negative", ErrInvalidInput)
	}

	return f, nil
}

func (s *Service) CreateFareType(ctx context.Context, params FareTypeParams) (*FareType, error) {
	f, err := params.fareType()
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateFareType(ctx, f); err != nil {
		return nil, err
	}

	return f, nil
}

func (s *Service) GetFareType(ctx context.Context, id uuid.UUID) (*FareType, error) {
	return s.repo.GetFareType(ctx, id)
}

func (s *Service) ListFareTypes(ctx context.Context, kind *FareKind) ([]*FareType, error) {
	return s.repo.ListFareTypes(ctx, kind)
}

// UpdateFareType changes the fare for future bookings; existing bookings keep
// the total computed when they were made.
func (s *Service) UpdateFareType(ctx context.Context, id uuid.UUID, params FareTypeParams) (*FareType, error) {
	f, err := params.fareType()
	if err != nil {
		return nil, err
	}

	f.ID = id

	if err := s.repo.UpdateFareType(ctx, f); err != nil {
		return nil, err
	}

	return f, nil
}

func (s *Service) DeleteFareType(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteFareType(ctx, id)
}

type BookingParams struct {
	CustomerID      uuid.UUID
	VehicleTypeID   *uuid.UUID
	PassengerTypeID uuid.UUID
	Passengers      int
	Route           string
	TravelDate      time.Time
}

func (s *Service) CreateBooking(ctx context.Context, params BookingParams) (*Booking, error) {
	route := strings.TrimSpace(params.Route)

	switch {
	case params.Passengers < 1:
		return nil, fmt.Errorf("%w: at least one passenger is required", ErrInvalidInput)
	case route == "":
		return nil, fmt.Errorf("%w: route is required", ErrInvalidInput)
	case params.TravelDate.IsZero():
		return nil, fmt.Errorf("%w: travel date is required", ErrInvalidInput)
	}

	if _, err := s.repo.GetCustomer(ctx, params.CustomerID); err != nil {
		return nil, referenceErr("customer", err)
	}

	passenger, err := s.fareOfKind(ctx, params.PassengerTypeID, KindPassenger)
	if err != nil {
		return nil, err
	}

	var vehicle *FareType

	if params.VehicleTypeID != nil {
		if vehicle, err = s.fareOfKind(ctx, *params.VehicleTypeID, KindVehicle); err != nil {
			return nil, err
		}
	}

	y, m, d := params.TravelDate.UTC().Date()

	b := &Booking{
		CustomerID:      params.CustomerID,
		VehicleTypeID:   params.VehicleTypeID,
		PassengerTypeID: params.PassengerTypeID,
		Passengers:      params.Passengers,
		Route:           route,
		TravelDate:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Total:           BookingTotal(vehicle, passenger, params.Passengers),
		Status:          StatusConfirmed,
	}

	if err := s.repo.CreateBooking(ctx, b); err != nil {
		return nil, err
	}

	slog.Info("booking created", "booking_id", b.ID, "customer_id", b.CustomerID, "total", b.Total)

	return b, nil
}

func (s *Service) fareOfKind(ctx context.Context, id uuid.UUID, kind FareKind) (*FareType, error) {
	f, err := s.repo.GetFareType(ctx, id)
	if err != nil {
		return nil, referenceErr(string(kind)+" fare type", err)
	}

	if f.Kind != kind {
		return nil, fmt.Errorf("%w: fare type %s is a %s fare, want %s", ErrInvalidInput, id, f.Kind, kind)
	}

	return f, nil
}

// referenceErr turns a missing referenced row into an input error.
func referenceErr(what string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: unknown %s", ErrInvalidInput, what)
	}

	return err
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *Service) ListBookings(ctx context.Context, customerID uuid.UUID) ([]*Booking, error) {
	return s.repo.ListBookings(ctx, customerID)
}

// CancelBooking is idempotent.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	if err := s.repo.SetBookingStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}

	return s.repo.GetBooking(ctx, id)
}
