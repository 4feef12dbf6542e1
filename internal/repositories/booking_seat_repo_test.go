package repositories

import (
	"context"
	"testing"
	"time"

	"busbook/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, func() *SeatHoldRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return mock, func() *SeatHoldRepository { return &SeatHoldRepository{DB: db} }
}

func TestReserveSeatsInsertsHolds(t *testing.T) {
	mock, repo := newMock(t)
	at := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_seats FROM trips WHERE id=\\? FOR UPDATE").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(4))
	mock.ExpectQuery("SELECT seat_number FROM seat_holds").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("A1"))
	mock.ExpectExec("INSERT INTO seat_holds").
		WithArgs("T1", "A2", "B-1", at, "T1", "A3", "B-1", at).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo().ReserveSeats(context.Background(), "T1", "B-1", []string{"A2", "A3"}, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSeatsRejectsHeldSeat(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_seats FROM trips").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(4))
	mock.ExpectQuery("SELECT seat_number FROM seat_holds").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("A1").AddRow("A2"))
	mock.ExpectRollback()

	err := repo().ReserveSeats(context.Background(), "T1", "B-1", []string{"A2", "A3"}, time.Now())
	var conflict domain.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A2"}, conflict.Seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSeatsRejectsOverCapacity(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_seats FROM trips").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(2))
	mock.ExpectQuery("SELECT seat_number FROM seat_holds").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("A1"))
	mock.ExpectRollback()

	err := repo().ReserveSeats(context.Background(), "T1", "B-1", []string{"A2", "A3"}, time.Now())
	assert.True(t, domain.IsSeatConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSeatsMapsDuplicateKeyToSeatConflict(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_seats FROM trips").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats"}).AddRow(40))
	mock.ExpectQuery("SELECT seat_number FROM seat_holds").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}))
	mock.ExpectExec("INSERT INTO seat_holds").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'T1-A2' for key 'uq_trip_seat'"})
	mock.ExpectRollback()

	err := repo().ReserveSeats(context.Background(), "T1", "B-1", []string{"A2"}, time.Now())
	assert.True(t, domain.IsSeatConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveSeatsUnknownTrip(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT total_seats FROM trips").WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows([]string{"total_seats"}))
	mock.ExpectRollback()

	err := repo().ReserveSeats(context.Background(), "NOPE", "B-1", []string{"A1"}, time.Now())
	assert.True(t, domain.IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseSeatsIsIdempotent(t *testing.T) {
	mock, repo := newMock(t)

	mock.ExpectExec("DELETE FROM seat_holds WHERE trip_id=\\? AND booking_id=\\?").WithArgs("T1", "B-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM seat_holds").WithArgs("T1", "B-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo().ReleaseSeats(context.Background(), "T1", "B-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo().ReleaseSeats(context.Background(), "T1", "B-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
