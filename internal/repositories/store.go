package repositories

import (
	"context"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
)

// TripStore reads and seeds trip schedules.
type TripStore interface {
	GetTrip(ctx context.Context, id string) (models.Trip, error)
	UpsertTrip(ctx context.Context, trip models.Trip) error
}

// SeatHoldStore is the atomic seat primitive. ReserveSeats must check the
// trip capacity and the requested seats and insert the holds as one unit
// with respect to concurrent callers on the same trip.
type SeatHoldStore interface {
	ReserveSeats(ctx context.Context, tripID, bookingID string, seats []string, at time.Time) error
	ReleaseSeats(ctx context.Context, tripID, bookingID string) (int, error)
	HeldSeats(ctx context.Context, tripID string) ([]models.SeatHold, error)
}

// BookingStore persists bookings. Transition is a compare-and-set and
// reports false when the stored status no longer matches t.From.
type BookingStore interface {
	CreateBooking(ctx context.Context, b models.Booking) error
	GetBookingByID(ctx context.Context, id string) (models.Booking, error)
	GetBookingByReference(ctx context.Context, ref string) (models.Booking, error)
	GetBookingByPaymentReference(ctx context.Context, paymentRef string) (models.Booking, error)
	ReferenceExists(ctx context.Context, ref string) (bool, error)
	SetPaymentAttempt(ctx context.Context, bookingID string, attempt models.PaymentAttempt, at time.Time) error
	Transition(ctx context.Context, t models.Transition, at time.Time) (bool, error)
	FlagForReview(ctx context.Context, bookingID, reason string, attempt models.PaymentAttempt, at time.Time) error
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Booking, error)
	ListReminderDue(ctx context.Context, departFrom, departTo time.Time, limit int) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, bookingID string) (bool, error)
}

// LoyaltyStore is the append-only points ledger. Append applies the entry and
// the running balance together; a negative entry larger than the balance
// fails with domain.InsufficientPointsError and a second entry of the same
// type for the same booking fails with domain.ConflictError.
type LoyaltyStore interface {
	AppendLoyalty(ctx context.Context, tx models.LoyaltyTransaction) error
	HasLoyaltyEntry(ctx context.Context, bookingID string, typ domain.LoyaltyTxType) (bool, error)
	LoyaltyBalance(ctx context.Context, userID string) (balance, lifetimeEarned int64, err error)
	LoyaltyHistory(ctx context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error)
}

// ReceiptStore holds bank-transfer proofs for the manual rail.
type ReceiptStore interface {
	CreateReceipt(ctx context.Context, r models.Receipt) error
	GetReceipt(ctx context.Context, id string) (models.Receipt, error)
	LatestReceipt(ctx context.Context, paymentRef string) (models.Receipt, error)
	ReviewReceipt(ctx context.Context, id string, status domain.ReceiptStatus, amount int64, notes string, at time.Time) (bool, error)
}

// Store bundles every persistence concern of the engine.
type Store interface {
	TripStore
	SeatHoldStore
	BookingStore
	LoyaltyStore
	ReceiptStore
}

// Earning reports whether a ledger type counts towards lifetime earned points.
func Earning(typ domain.LoyaltyTxType) bool {
	return typ == domain.LoyaltyEarned || typ == domain.LoyaltyBonus
}
