package store_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seaward/backoffice/internal/ferry"
	"github.com/seaward/backoffice/internal/ferry/store"
)

func TestStore_DeleteFareType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	s := store.New(db)

	t.Run("InUse", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM ferry_fare_types WHERE id = $1`)).
			WithArgs(id).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		assert.ErrorIs(t, s.DeleteFareType(context.Background(), id), ferry.ErrInUse)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM ferry_fare_types WHERE id = $1`)).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.DeleteFareType(context.Background(), id), ferry.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListFareTypes_ByKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	kind := ferry.KindVehicle

	mock.ExpectQuery(regexp.QuoteMeta(`FROM ferry_fare_types WHERE kind = $1 ORDER BY kind ASC, name ASC`)).
		WithArgs("vehicle").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "name", "fare", "created_at"}).
			AddRow(uuid.NewString(), "vehicle", "Car", "40.00", time.Now()))

	got, err := store.New(db).ListFareTypes(context.Background(), &kind)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ferry.KindVehicle, got[0].Kind)
	assert.True(t, decimal.NewFromInt(40).Equal(got[0].Fare))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateAndGetBooking(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := store.New(db)
	id := uuid.New()
	customerID := uuid.New()
	passengerID := uuid.New()
	travel := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	b := &ferry.Booking{
		CustomerID:      customerID,
		PassengerTypeID: passengerID,
		Passengers:      2,
		Route:           "A - B",
		TravelDate:      travel,
		Total:           decimal.NewFromInt(20),
		Status:          ferry.StatusConfirmed,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO ferry_bookings`)).
		WithArgs(customerID, nil, passengerID, 2, "A - B", travel, "20", "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id.String(), time.Now()))

	require.NoError(t, s.CreateBooking(context.Background(), b))
	assert.Equal(t, id, b.ID)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM ferry_bookings WHERE id = $1`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "vehicle_type_id", "passenger_type_id", "passengers", "route",
			"travel_date", "total", "status", "created_at",
		}).AddRow(id.String(), customerID.String(), nil, passengerID.String(), 2, "A - B", travel, "20.00", "confirmed", time.Now()))

	got, err := s.GetBooking(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, got.VehicleTypeID)
	assert.Equal(t, ferry.StatusConfirmed, got.Status)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO ferry_bookings`)).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	assert.ErrorIs(t, s.CreateBooking(context.Background(), b), ferry.ErrInvalidInput)

	assert.NoError(t, mock.ExpectationsWereMet())
}
