package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/seaward/backoffice/internal/database"
	"github.com/seaward/backoffice/internal/ferry"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// notFound maps a zero-row result to ferry.ErrNotFound.
func notFound(res sql.Result, verb string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", verb, ferry.ErrNotFound)
	}

	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, c *ferry.Customer) error {
	query := `
		INSERT INTO ferry_customers (name, phone, email, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`

	if err := s.db.QueryRowContext(ctx, query, c.Name, c.Phone, c.Email).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("creating customer: %w", err)
	}

	return nil
}

func scanCustomer(s scanner) (*ferry.Customer, error) {
	var c ferry.Customer
	if err := s.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*ferry.Customer, error) {
	query := `SELECT id, name, phone, email, created_at FROM ferry_customers WHERE id = $1`

	c, err := scanCustomer(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", id, ferry.ErrNotFound)
		}

		return nil, fmt.Errorf("getting customer: %w", err)
	}

	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]*ferry.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, phone, email, created_at FROM ferry_customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	cs := []*ferry.Customer{}

	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}

		cs = append(cs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating customers: %w", err)
	}

	return cs, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c *ferry.Customer) error {
	query := `
		UPDATE ferry_customers SET name = $1, phone = $2, email = $3
		WHERE id = $4
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query, c.Name, c.Phone, c.Email, c.ID).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("customer %s: %w", c.ID, ferry.ErrNotFound)
		}

		return fmt.Errorf("updating customer: %w", err)
	}

	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ferry_customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting customer: %w", err)
	}

	return notFound(res, "customer")
}

func (s *Store) CreateFareType(ctx context.Context, f *ferry.FareType) error {
	query := `
		INSERT INTO ferry_fare_types (kind, name, fare, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query, string(f.Kind), f.Name, f.Fare).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s fare %q already exists", ferry.ErrInvalidInput, f.Kind, f.Name)
		}

		return fmt.Errorf("creating fare type: %w", err)
	}

	return nil
}

func scanFareType(s scanner) (*ferry.FareType, error) {
	var (
		f    ferry.FareType
		kind string
	)

	if err := s.Scan(&f.ID, &kind, &f.Name, &f.Fare, &f.CreatedAt); err != nil {
		return nil, err
	}

	f.Kind = ferry.FareKind(kind)

	return &f, nil
}

func (s *Store) GetFareType(ctx context.Context, id uuid.UUID) (*ferry.FareType, error) {
	query := `SELECT id, kind, name, fare, created_at FROM ferry_fare_types WHERE id = $1`

	f, err := scanFareType(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fare type %s: %w", id, ferry.ErrNotFound)
		}

		return nil, fmt.Errorf("getting fare type: %w", err)
	}

	return f, nil
}

func (s *Store) ListFareTypes(ctx context.Context, kind *ferry.FareKind) ([]*ferry.FareType, error) {
	query := `SELECT id, kind, name, fare, created_at FROM ferry_fare_types`

	var args []any

	if kind != nil {
		query += ` WHERE kind = $1`

		args = append(args, string(*kind))
	}

	query += ` ORDER BY kind ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing fare types: %w", err)
	}
	defer rows.Close()

	fs := []*ferry.FareType{}

	for rows.Next() {
		f, err := scanFareType(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fare type: %w", err)
		}

		fs = append(fs, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fare types: %w", err)
	}

	return fs, nil
}

func (s *Store) UpdateFareType(ctx context.Context, f *ferry.FareType) error {
	query := `
		UPDATE ferry_fare_types SET kind = $1, name = $2, fare = $3
		WHERE id = $4
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query, string(f.Kind), f.Name, f.Fare, f.ID).Scan(&f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("fare type %s: %w", f.ID, ferry.ErrNotFound)
		}

		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s fare %q already exists", ferry.ErrInvalidInput, f.Kind, f.Name)
		}

		return fmt.Errorf("updating fare type: %w", err)
	}

	return nil
}

func (s *Store) DeleteFareType(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ferry_fare_types WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ferry.ErrInUse
		}

		return fmt.Errorf("deleting fare type: %w", err)
	}

	return notFound(res, "fare type")
}

const selectBookingColumns = `
	id, customer_id, vehicle_type_id, passenger_type_id, passengers, route,
	travel_date, total, status, created_at
`

func scanBooking(s scanner) (*ferry.Booking, error) {
	var (
		b      ferry.Booking
		status string
	)

	if err := s.Scan(
		&b.ID, &b.CustomerID, &b.VehicleTypeID, &b.PassengerTypeID, &b.Passengers, &b.Route,
		&b.TravelDate, &b.Total, &status, &b.CreatedAt,
	); err != nil {
		return nil, err
	}

	b.Status = ferry.BookingStatus(status)

	return &b, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *ferry.Booking) error {
	query := `
		INSERT INTO ferry_bookings (customer_id, vehicle_type_id, passenger_type_id, passengers, route, travel_date, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		b.CustomerID,
		b.VehicleTypeID,
		b.PassengerTypeID,
		b.Passengers,
		b.Route,
		b.TravelDate,
		b.Total,
		string(b.Status),
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: booking references a missing customer or fare type", ferry.ErrInvalidInput)
		}

		return fmt.Errorf("creating booking: %w", err)
	}

	return nil
}

func (s *Store) GetBooking(ctx context.Context, id uuid.UUID) (*ferry.Booking, error) {
	query := `SELECT ` + selectBookingColumns + ` FROM ferry_bookings WHERE id = $1`

	b, err := scanBooking(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", id, ferry.ErrNotFound)
		}

		return nil, fmt.Errorf("getting booking: %w", err)
	}

	return b, nil
}

func (s *Store) ListBookings(ctx context.Context, customerID uuid.UUID) ([]*ferry.Booking, error) {
	query := `SELECT ` + selectBookingColumns + `
		FROM ferry_bookings
		WHERE customer_id = $1
		ORDER BY travel_date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	defer rows.Close()

	bs := []*ferry.Booking{}

	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}

		bs = append(bs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bookings: %w", err)
	}

	return bs, nil
}

func (s *Store) SetBookingStatus(ctx context.Context, id uuid.UUID, status ferry.BookingStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ferry_bookings SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating booking status: %w", err)
	}

	return notFound(res, "booking")
}
