package repositories

import (
	"context"
	"testing"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{
	"id", "reference", "trip_id", "user_id", "passenger_name", "passenger_email", "passenger_phone",
	"seats", "total_amount", "status", "payment_status", "payment_provider", "payment_reference",
	"gateway_status", "gateway_raw", "loyalty_points_earned", "loyalty_points_used", "ticket",
	"review_reason", "reminder_sent", "created_at", "updated_at",
}

func TestGetBookingByReferenceScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM bookings WHERE reference=\\?").WithArgs("BK-ABC12345").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
			"b-1", "BK-ABC12345", "T1", "u-1", "Ada", "ada@example.com", "",
			"A1,A2", int64(20000), "PENDING", "PENDING", "paystack", "PSK-1",
			"pending", "", int64(0), int64(0), "", "", false, created, created,
		))

	b, err := BookingRepository{DB: db}.GetBookingByReference(context.Background(), "BK-ABC12345")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, b.Seats)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.ProviderPaystack, b.Payment.Provider)
	assert.Equal(t, domain.GatewayPending, b.Payment.LastStatus)
	assert.Equal(t, "u-1", b.Passenger.UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM bookings WHERE payment_reference=\\?").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	_, err = BookingRepository{DB: db}.GetBookingByPaymentReference(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateBookingDuplicateReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err = BookingRepository{DB: db}.CreateBooking(context.Background(), models.Booking{
		ID: "b-1", Reference: "BK-DUP", TripID: "T1", Seats: []string{"A1"},
		Status: domain.BookingPending, PaymentStatus: domain.PaymentPending,
	})
	assert.True(t, domain.IsConflict(err))
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tr := models.Transition{
		BookingID:     "b-1",
		From:          domain.BookingPending,
		To:            domain.BookingConfirmed,
		PaymentStatus: domain.PaymentCompleted,
		GatewayStatus: domain.GatewaySuccess,
		PointsEarned:  200,
		Ticket:        "jwt",
	}
	at := time.Now()

	mock.ExpectExec("UPDATE bookings\\s+SET status=\\?.*WHERE id=\\? AND status=\\?").
		WithArgs("CONFIRMED", "COMPLETED", "success", nil, int64(200), "jwt", sqlmock.AnyArg(), "b-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings\\s+SET status=\\?").
		WithArgs("CONFIRMED", "COMPLETED", "success", nil, int64(200), "jwt", sqlmock.AnyArg(), "b-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := BookingRepository{DB: db}
	won, err := repo.Transition(context.Background(), tr, at)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Transition(context.Background(), tr, at)
	require.NoError(t, err)
	assert.False(t, won)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPaymentAttemptRequiresPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE bookings\\s+SET payment_provider=\\?").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = BookingRepository{DB: db}.SetPaymentAttempt(context.Background(), "b-1",
		models.PaymentAttempt{Provider: domain.ProviderStripe, Reference: "pi_1"}, time.Now())
	assert.True(t, domain.IsConflict(err))
}

func TestListStalePendingSkipsReview(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("review_reason IS NULL OR review_reason=''").
		WithArgs("PENDING", cutoff, 50).
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	out, err := BookingRepository{DB: db}.ListStalePending(context.Background(), cutoff, 50)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.NoError(t, mock.ExpectationsWereMet())
}
