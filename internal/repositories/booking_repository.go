package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	intconfig "busbook/internal/config"
	intdb "busbook/internal/db"
	"busbook/internal/domain"
	"busbook/internal/domain/models"
)

type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// bookingColumns lists the scan order of scanBooking, qualified by alias when set.
func bookingColumns(alias string) string {
	if alias != "" {
		alias += "."
	}
	return fmt.Sprintf(`%[1]sid, %[1]sreference, %[1]strip_id,
	COALESCE(%[1]suser_id,''), %[1]spassenger_name, COALESCE(%[1]spassenger_email,''), COALESCE(%[1]spassenger_phone,''),
	%[1]sseats, %[1]stotal_amount, %[1]sstatus, %[1]spayment_status,
	COALESCE(%[1]spayment_provider,''), COALESCE(%[1]spayment_reference,''), COALESCE(%[1]sgateway_status,''), COALESCE(%[1]sgateway_raw,''),
	%[1]sloyalty_points_earned, %[1]sloyalty_points_used, COALESCE(%[1]sticket,''), COALESCE(%[1]sreview_reason,''), %[1]sreminder_sent,
	%[1]screated_at, %[1]supdated_at`, alias)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (models.Booking, error) {
	var (
		b        models.Booking
		seats    string
		provider string
		gwStatus string
	)
	err := row.Scan(
		&b.ID,
		&b.Reference,
		&b.TripID,
		&b.Passenger.UserID,
		&b.Passenger.Name,
		&b.Passenger.Email,
		&b.Passenger.Phone,
		&seats,
		&b.TotalAmount,
		&b.Status,
		&b.PaymentStatus,
		&provider,
		&b.Payment.Reference,
		&gwStatus,
		&b.Payment.Raw,
		&b.LoyaltyPointsEarned,
		&b.LoyaltyPointsUsed,
		&b.Ticket,
		&b.ReviewReason,
		&b.ReminderSent,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return models.Booking{}, err
	}
	b.Seats = splitList(seats)
	b.Payment.Provider = domain.Provider(provider)
	b.Payment.LastStatus = domain.GatewayStatus(gwStatus)
	return b, nil
}

func (r BookingRepository) CreateBooking(ctx context.Context, b models.Booking) error {
	_, err := r.db().ExecContext(ctx, `
		INSERT INTO bookings (
			id, reference, trip_id, user_id, passenger_name, passenger_email, passenger_phone,
			seats, total_amount, status, payment_status, payment_provider, payment_reference,
			loyalty_points_used, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.Reference, b.TripID,
		intdb.NullIfEmpty(b.Passenger.UserID), b.Passenger.Name,
		intdb.NullIfEmpty(b.Passenger.Email), intdb.NullIfEmpty(b.Passenger.Phone),
		joinList(b.Seats), b.TotalAmount, string(b.Status), string(b.PaymentStatus),
		intdb.NullIfEmpty(string(b.Payment.Provider)), intdb.NullIfEmpty(b.Payment.Reference),
		b.LoyaltyPointsUsed, utc(b.CreatedAt), utc(b.UpdatedAt),
	)
	if intdb.IsDuplicateKey(err) {
		return domain.ConflictError{Resource: "booking", Msg: "reference already exists", Err: err}
	}
	if err != nil {
		return domain.InternalError{Msg: "insert booking", Err: err}
	}
	return nil
}

func (r BookingRepository) getBy(ctx context.Context, column, value string) (models.Booking, error) {
	if strings.TrimSpace(value) == "" {
		return models.Booking{}, domain.ValidationError{Field: column, Msg: "required"}
	}
	row := r.db().QueryRowContext(ctx, `SELECT `+bookingColumns("")+` FROM bookings WHERE `+column+`=? LIMIT 1`, value)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
	}
	if err != nil {
		return models.Booking{}, domain.InternalError{Msg: "load booking", Err: err}
	}
	return b, nil
}

func (r BookingRepository) GetBookingByID(ctx context.Context, id string) (models.Booking, error) {
	return r.getBy(ctx, "id", id)
}

func (r BookingRepository) GetBookingByReference(ctx context.Context, ref string) (models.Booking, error) {
	return r.getBy(ctx, "reference", ref)
}

func (r BookingRepository) GetBookingByPaymentReference(ctx context.Context, paymentRef string) (models.Booking, error) {
	return r.getBy(ctx, "payment_reference", paymentRef)
}

func (r BookingRepository) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	var n int
	if err := r.db().QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE reference=?`, ref).Scan(&n); err != nil {
		return false, domain.InternalError{Msg: "check reference", Err: err}
	}
	return n > 0, nil
}

// SetPaymentAttempt replaces the active attempt. Only PENDING bookings accept one.
func (r BookingRepository) SetPaymentAttempt(ctx context.Context, bookingID string, a models.PaymentAttempt, at time.Time) error {
	res, err := r.db().ExecContext(ctx, `
		UPDATE bookings
		SET payment_provider=?, payment_reference=?, gateway_status=?, gateway_raw=?, updated_at=?
		WHERE id=? AND status=?`,
		string(a.Provider), a.Reference, string(a.LastStatus), intdb.NullIfEmpty(a.Raw), utc(at),
		bookingID, string(domain.BookingPending),
	)
	if intdb.IsDuplicateKey(err) {
		return domain.ConflictError{Resource: "payment", Msg: "payment reference already used", Err: err}
	}
	if err != nil {
		return domain.InternalError{Msg: "update payment attempt", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ConflictError{Resource: "booking", Msg: "booking is no longer pending"}
	}
	return nil
}

// Transition moves the booking only while its status still equals t.From.
func (r BookingRepository) Transition(ctx context.Context, t models.Transition, at time.Time) (bool, error) {
	res, err := r.db().ExecContext(ctx, `
		UPDATE bookings
		SET status=?,
			payment_status=?,
			gateway_status=COALESCE(?, gateway_status),
			gateway_raw=COALESCE(?, gateway_raw),
			loyalty_points_earned=GREATEST(loyalty_points_earned, ?),
			ticket=COALESCE(?, ticket),
			review_reason=NULL,
			updated_at=?
		WHERE id=? AND status=?`,
		string(t.To), string(t.PaymentStatus),
		intdb.NullIfEmpty(string(t.GatewayStatus)), intdb.NullIfEmpty(t.GatewayRaw),
		t.PointsEarned, intdb.NullIfEmpty(t.Ticket), utc(at),
		t.BookingID, string(t.From),
	)
	if err != nil {
		return false, domain.InternalError{Msg: "transition booking", Err: err}
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r BookingRepository) FlagForReview(ctx context.Context, bookingID, reason string, a models.PaymentAttempt, at time.Time) error {
	_, err := r.db().ExecContext(ctx, `
		UPDATE bookings
		SET review_reason=?, gateway_status=?, gateway_raw=?, updated_at=?
		WHERE id=? AND status=?`,
		reason, string(a.LastStatus), intdb.NullIfEmpty(a.Raw), utc(at),
		bookingID, string(domain.BookingPending),
	)
	if err != nil {
		return domain.InternalError{Msg: "flag booking for review", Err: err}
	}
	return nil
}

// ListStalePending skips bookings waiting on manual review.
func (r BookingRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns("")+`
		FROM bookings
		WHERE status=? AND created_at < ? AND (review_reason IS NULL OR review_reason='')
		ORDER BY created_at ASC
		LIMIT ?`,
		string(domain.BookingPending), utc(createdBefore), limit)
}

func (r BookingRepository) ListReminderDue(ctx context.Context, departFrom, departTo time.Time, limit int) ([]models.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns("b")+`
		FROM bookings b
		JOIN trips t ON t.id = b.trip_id
		WHERE b.status=? AND b.reminder_sent=0 AND t.active=1 AND t.departure_at BETWEEN ? AND ?
		ORDER BY t.departure_at ASC
		LIMIT ?`,
		string(domain.BookingConfirmed), utc(departFrom), utc(departTo), limit)
}

func (r BookingRepository) MarkReminderSent(ctx context.Context, bookingID string) (bool, error) {
	res, err := r.db().ExecContext(ctx, `UPDATE bookings SET reminder_sent=1 WHERE id=? AND reminder_sent=0`, bookingID)
	if err != nil {
		return false, domain.InternalError{Msg: "mark reminder", Err: err}
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r BookingRepository) list(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.InternalError{Msg: "list bookings", Err: err}
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
