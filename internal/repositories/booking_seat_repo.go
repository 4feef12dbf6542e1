package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	intconfig "busbook/internal/config"
	intdb "busbook/internal/db"
	"busbook/internal/domain"
	"busbook/internal/domain/models"

	"github.com/samber/lo"
)

// SeatHoldRepository owns the seat_holds table. UNIQUE(trip_id, seat_number)
// is the last line of defence against double selling.
type SeatHoldRepository struct {
	DB *sql.DB
}

func (r SeatHoldRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// ReserveSeats locks the trip row so writers on the same trip queue up, then
// checks capacity and inserts all holds in one statement.
func (r SeatHoldRepository) ReserveSeats(ctx context.Context, tripID, bookingID string, seats []string, at time.Time) error {
	if len(seats) == 0 {
		return domain.ValidationError{Field: "seats", Msg: "at least one seat is required"}
	}
	return intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		var total int
		err := tx.QueryRowContext(ctx, `SELECT total_seats FROM trips WHERE id=? FOR UPDATE`, tripID).Scan(&total)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundError{Resource: "trip", Err: err}
		}
		if err != nil {
			return domain.InternalError{Msg: "lock trip", Err: err}
		}

		held, err := heldSeatNumbers(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if taken := lo.Intersect(held, seats); len(taken) > 0 {
			return domain.SeatConflictError{TripID: tripID, Seats: taken}
		}
		if len(held)+len(seats) > total {
			return domain.SeatConflictError{TripID: tripID}
		}

		placeholders := make([]string, 0, len(seats))
		args := make([]any, 0, len(seats)*4)
		for _, seat := range seats {
			placeholders = append(placeholders, "(?,?,?,?)")
			args = append(args, tripID, seat, bookingID, utc(at))
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO seat_holds (trip_id, seat_number, booking_id, created_at) VALUES `+strings.Join(placeholders, ","),
			args...)
		if intdb.IsDuplicateKey(err) {
			return domain.SeatConflictError{TripID: tripID, Seats: seats, Err: err}
		}
		if err != nil {
			return domain.InternalError{Msg: "insert seat holds", Err: err}
		}
		return nil
	})
}

// ReleaseSeats deletes the booking's holds. Releasing twice is a no-op.
func (r SeatHoldRepository) ReleaseSeats(ctx context.Context, tripID, bookingID string) (int, error) {
	res, err := r.db().ExecContext(ctx, `DELETE FROM seat_holds WHERE trip_id=? AND booking_id=?`, tripID, bookingID)
	if err != nil {
		return 0, domain.InternalError{Msg: "release seat holds", Err: err}
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r SeatHoldRepository) HeldSeats(ctx context.Context, tripID string) ([]models.SeatHold, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT trip_id, seat_number, booking_id, created_at
		FROM seat_holds
		WHERE trip_id=?
		ORDER BY seat_number ASC`, tripID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list seat holds", Err: err}
	}
	defer rows.Close()

	out := []models.SeatHold{}
	for rows.Next() {
		var h models.SeatHold
		if err := rows.Scan(&h.TripID, &h.SeatNumber, &h.BookingID, &h.CreatedAt); err != nil {
			return out, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func heldSeatNumbers(ctx context.Context, q intdb.Execer, tripID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT seat_number FROM seat_holds WHERE trip_id=?`, tripID)
	if err != nil {
		return nil, domain.InternalError{Msg: "list seat holds", Err: err}
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}
