// Package memory is an in-process Store used for local runs and tests.
// A single mutex serializes every write, which makes ReserveSeats atomic.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/repositories"

	"github.com/samber/lo"
)

type Store struct {
	mu sync.Mutex

	trips    map[string]models.Trip
	holds    map[string]map[string]models.SeatHold // trip -> seat -> hold
	bookings map[string]models.Booking
	byRef    map[string]string
	byPayRef map[string]string
	ledger   []models.LoyaltyTransaction
	receipts map[string]models.Receipt
}

func New() *Store {
	return &Store{
		trips:    map[string]models.Trip{},
		holds:    map[string]map[string]models.SeatHold{},
		bookings: map[string]models.Booking{},
		byRef:    map[string]string{},
		byPayRef: map[string]string{},
		receipts: map[string]models.Receipt{},
	}
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) GetTrip(_ context.Context, id string) (models.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return models.Trip{}, domain.NotFoundError{Resource: "trip"}
	}
	t.SeatLayout = append([]string(nil), t.SeatLayout...)
	return t, nil
}

func (s *Store) UpsertTrip(_ context.Context, t models.Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.SeatLayout = append([]string(nil), t.SeatLayout...)
	s.trips[t.ID] = t
	return nil
}

func (s *Store) ReserveSeats(_ context.Context, tripID, bookingID string, seats []string, at time.Time) error {
	if len(seats) == 0 {
		return domain.ValidationError{Field: "seats", Msg: "at least one seat is required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[tripID]
	if !ok {
		return domain.NotFoundError{Resource: "trip"}
	}
	held := s.holds[tripID]
	if held == nil {
		held = map[string]models.SeatHold{}
		s.holds[tripID] = held
	}
	taken := lo.Filter(seats, func(seat string, _ int) bool {
		_, exists := held[seat]
		return exists
	})
	if len(taken) > 0 {
		return domain.SeatConflictError{TripID: tripID, Seats: taken}
	}
	if len(held)+len(seats) > trip.TotalSeats {
		return domain.SeatConflictError{TripID: tripID}
	}
	for _, seat := range seats {
		held[seat] = models.SeatHold{TripID: tripID, SeatNumber: seat, BookingID: bookingID, CreatedAt: at}
	}
	return nil
}

func (s *Store) ReleaseSeats(_ context.Context, tripID, bookingID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for seat, h := range s.holds[tripID] {
		if h.BookingID == bookingID {
			delete(s.holds[tripID], seat)
			n++
		}
	}
	return n, nil
}

func (s *Store) HeldSeats(_ context.Context, tripID string) ([]models.SeatHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Values(s.holds[tripID])
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (s *Store) CreateBooking(_ context.Context, b models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRef[b.Reference]; exists {
		return domain.ConflictError{Resource: "booking", Msg: "reference already exists"}
	}
	if b.Payment.Reference != "" {
		if _, exists := s.byPayRef[b.Payment.Reference]; exists {
			return domain.ConflictError{Resource: "payment", Msg: "payment reference already used"}
		}
		s.byPayRef[b.Payment.Reference] = b.ID
	}
	s.bookings[b.ID] = clone(b)
	s.byRef[b.Reference] = b.ID
	return nil
}

func (s *Store) GetBookingByID(_ context.Context, id string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

func (s *Store) GetBookingByReference(_ context.Context, ref string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(s.byRef[ref])
}

func (s *Store) GetBookingByPaymentReference(_ context.Context, paymentRef string) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(s.byPayRef[paymentRef])
}

func (s *Store) ReferenceExists(_ context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byRef[ref]
	return ok, nil
}

func (s *Store) SetPaymentAttempt(_ context.Context, bookingID string, a models.PaymentAttempt, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != domain.BookingPending {
		return domain.ConflictError{Resource: "booking", Msg: "booking is no longer pending"}
	}
	if owner, exists := s.byPayRef[a.Reference]; exists && owner != bookingID {
		return domain.ConflictError{Resource: "payment", Msg: "payment reference already used"}
	}
	if b.Payment.Reference != "" {
		delete(s.byPayRef, b.Payment.Reference)
	}
	b.Payment = a
	b.UpdatedAt = at
	s.bookings[bookingID] = b
	s.byPayRef[a.Reference] = bookingID
	return nil
}

func (s *Store) Transition(_ context.Context, t models.Transition, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[t.BookingID]
	if !ok || b.Status != t.From {
		return false, nil
	}
	b.Status = t.To
	b.PaymentStatus = t.PaymentStatus
	if t.GatewayStatus != "" {
		b.Payment.LastStatus = t.GatewayStatus
	}
	if t.GatewayRaw != "" {
		b.Payment.Raw = t.GatewayRaw
	}
	if t.PointsEarned > b.LoyaltyPointsEarned {
		b.LoyaltyPointsEarned = t.PointsEarned
	}
	if t.Ticket != "" {
		b.Ticket = t.Ticket
	}
	b.ReviewReason = ""
	b.UpdatedAt = at
	s.bookings[b.ID] = b
	return true, nil
}

func (s *Store) FlagForReview(_ context.Context, bookingID, reason string, a models.PaymentAttempt, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.Status != domain.BookingPending {
		return nil
	}
	b.ReviewReason = reason
	b.Payment.LastStatus = a.LastStatus
	if a.Raw != "" {
		b.Payment.Raw = a.Raw
	}
	b.UpdatedAt = at
	s.bookings[bookingID] = b
	return nil
}

func (s *Store) ListStalePending(_ context.Context, createdBefore time.Time, limit int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(lo.Values(s.bookings), func(b models.Booking, _ int) bool {
		return b.Status == domain.BookingPending && !b.UnderReview() && b.CreatedAt.Before(createdBefore)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *Store) ListReminderDue(_ context.Context, departFrom, departTo time.Time, limit int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Filter(lo.Values(s.bookings), func(b models.Booking, _ int) bool {
		trip, ok := s.trips[b.TripID]
		if !ok || !trip.Active || b.Status != domain.BookingConfirmed || b.ReminderSent {
			return false
		}
		return !trip.DepartureAt.Before(departFrom) && !trip.DepartureAt.After(departTo)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return truncate(out, limit), nil
}

func (s *Store) MarkReminderSent(_ context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.ReminderSent {
		return false, nil
	}
	b.ReminderSent = true
	s.bookings[bookingID] = b
	return true, nil
}

func (s *Store) AppendLoyalty(_ context.Context, t models.LoyaltyTransaction) error {
	if t.UserID == "" {
		return domain.ValidationError{Field: "user_id", Msg: "required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.BookingID != "" && s.hasEntry(t.BookingID, t.Type) {
		return domain.ConflictError{Resource: "loyalty", Msg: "entry already recorded for booking"}
	}
	balance, _ := s.balance(t.UserID)
	if t.PointsChange < 0 && balance+t.PointsChange < 0 {
		return domain.InsufficientPointsError{UserID: t.UserID, Requested: -t.PointsChange, Balance: balance}
	}
	s.ledger = append(s.ledger, t)
	return nil
}

func (s *Store) HasLoyaltyEntry(_ context.Context, bookingID string, typ domain.LoyaltyTxType) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasEntry(bookingID, typ), nil
}

func (s *Store) LoyaltyBalance(_ context.Context, userID string) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, lifetime := s.balance(userID)
	return balance, lifetime, nil
}

func (s *Store) LoyaltyHistory(_ context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LoyaltyTransaction{}
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].UserID == userID {
			out = append(out, s.ledger[i])
		}
	}
	return truncate(out, limit), nil
}

func (s *Store) CreateReceipt(_ context.Context, r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[r.ID] = r
	return nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok {
		return models.Receipt{}, domain.NotFoundError{Resource: "payment validation"}
	}
	return r, nil
}

func (s *Store) LatestReceipt(_ context.Context, paymentRef string) (models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest models.Receipt
		found  bool
	)
	for _, r := range s.receipts {
		if r.PaymentReference != paymentRef {
			continue
		}
		if !found || r.CreatedAt.After(latest.CreatedAt) {
			latest, found = r, true
		}
	}
	if !found {
		return models.Receipt{}, domain.NotFoundError{Resource: "payment validation"}
	}
	return latest, nil
}

func (s *Store) ReviewReceipt(_ context.Context, id string, status domain.ReceiptStatus, amount int64, notes string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok || r.Status != domain.ReceiptPending {
		return false, nil
	}
	r.Status = status
	if status == domain.ReceiptApproved {
		r.ApprovedAmount = amount
	}
	if strings.TrimSpace(notes) != "" {
		r.Notes = notes
	}
	r.ReviewedAt = &at
	s.receipts[id] = r
	return true, nil
}

func (s *Store) lookup(id string) (models.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return clone(b), nil
}

func (s *Store) hasEntry(bookingID string, typ domain.LoyaltyTxType) bool {
	return lo.ContainsBy(s.ledger, func(t models.LoyaltyTransaction) bool {
		return t.BookingID == bookingID && t.Type == typ
	})
}

func (s *Store) balance(userID string) (balance, lifetime int64) {
	for _, t := range s.ledger {
		if t.UserID != userID {
			continue
		}
		balance += t.PointsChange
		if repositories.Earning(t.Type) && t.PointsChange > 0 {
			lifetime += t.PointsChange
		}
	}
	return balance, lifetime
}

func clone(b models.Booking) models.Booking {
	b.Seats = append([]string(nil), b.Seats...)
	return b
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
