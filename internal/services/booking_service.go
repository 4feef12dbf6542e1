package services

import (
	"context"
	"errors"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/payments"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxSeats = 6

type CreateBookingRequest struct {
	TripID             string               `json:"tripId"`
	Passenger          models.PassengerInfo `json:"passenger"`
	Seats              []string             `json:"seats"`
	LoyaltyPointsToUse int64                `json:"loyaltyPointsToUse"`
	Provider           string               `json:"provider,omitempty"`
}

// BookingService creates bookings and drives them into the payment rails.
// Only the reconciliation engine confirms or fails a booking.
type BookingService struct {
	Trips     repositories.TripStore
	Bookings  repositories.BookingStore
	Inventory InventoryService
	Loyalty   LoyaltyService
	Payments  *payments.Registry
	MaxSeats  int
	Now       utils.Clock
}

func (s BookingService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

func (s BookingService) maxSeats() int {
	if s.MaxSeats > 0 {
		return s.MaxSeats
	}
	return defaultMaxSeats
}

func (s BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (models.Booking, error) {
	passenger, err := validatePassenger(req.Passenger)
	if err != nil {
		return models.Booking{}, err
	}
	seats := utils.NormalizeSeats(req.Seats)
	switch {
	case req.TripID == "":
		return models.Booking{}, domain.ValidationError{Field: "trip_id", Msg: "required"}
	case len(seats) == 0:
		return models.Booking{}, domain.ValidationError{Field: "seats", Msg: "at least one seat is required"}
	case len(seats) > s.maxSeats():
		return models.Booking{}, domain.ValidationError{Field: "seats", Msg: "too many seats in one booking"}
	case req.LoyaltyPointsToUse < 0:
		return models.Booking{}, domain.ValidationError{Field: "loyalty_points", Msg: "must not be negative"}
	}
	var provider domain.Provider
	if req.Provider != "" {
		if provider, err = domain.ParseProvider(req.Provider); err != nil {
			return models.Booking{}, err
		}
	}

	trip, err := s.Trips.GetTrip(ctx, req.TripID)
	if err != nil {
		return models.Booking{}, err
	}

	if err := s.Loyalty.CheckBalance(ctx, passenger.UserID, req.LoyaltyPointsToUse); err != nil {
		return models.Booking{}, err
	}
	subtotal := int64(len(seats)) * trip.BasePrice
	discount := s.Loyalty.DiscountFor(req.LoyaltyPointsToUse)
	if discount >= subtotal && req.LoyaltyPointsToUse > 0 {
		return models.Booking{}, domain.ValidationError{Field: "loyalty_points", Msg: "discount exceeds booking total"}
	}

	ref, err := uniqueReference(ctx, s.Bookings, newBookingReference)
	if err != nil {
		return models.Booking{}, err
	}

	now := s.now()()
	booking := models.Booking{
		ID:                uuid.NewString(),
		Reference:         ref,
		TripID:            trip.ID,
		Passenger:         passenger,
		Seats:             seats,
		TotalAmount:       subtotal - discount,
		Status:            domain.BookingPending,
		PaymentStatus:     domain.PaymentPending,
		Payment:           models.PaymentAttempt{Provider: provider},
		LoyaltyPointsUsed: req.LoyaltyPointsToUse,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.Inventory.Reserve(ctx, trip.ID, booking.ID, seats); err != nil {
		return models.Booking{}, err
	}
	if err := s.Bookings.CreateBooking(ctx, booking); err != nil {
		if relErr := s.Inventory.Release(ctx, trip.ID, booking.ID); relErr != nil {
			utils.LogError(ctx, "booking", "compensate", relErr, zap.String("booking_id", booking.ID))
		}
		return models.Booking{}, err
	}

	utils.LogEvent(ctx, "booking", "create", "booking created",
		zap.String("reference", booking.Reference), zap.String("trip_id", trip.ID),
		zap.Strings("seats", seats), zap.Int64("total", booking.TotalAmount))
	return booking, nil
}

// InitializePayment opens a new payment attempt; it replaces any earlier one.
func (s BookingService) InitializePayment(ctx context.Context, bookingRef, provider string) (payments.Initialization, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return payments.Initialization{}, err
	}
	if booking.Status != domain.BookingPending {
		return payments.Initialization{}, domain.ConflictError{Resource: "booking", Msg: "booking is " + string(booking.Status)}
	}
	if booking.UnderReview() {
		return payments.Initialization{}, domain.ConflictError{Resource: "booking", Msg: "payment under review"}
	}

	p := booking.Payment.Provider
	if provider != "" {
		if p, err = domain.ParseProvider(provider); err != nil {
			return payments.Initialization{}, err
		}
	}
	if p == "" {
		return payments.Initialization{}, domain.ValidationError{Field: "provider", Msg: "required"}
	}
	adapter, err := s.Payments.Get(p)
	if err != nil {
		return payments.Initialization{}, err
	}

	init, err := adapter.Initialize(ctx, booking.Reference, booking.TotalAmount, payments.Payer{
		Name:  booking.Passenger.Name,
		Email: booking.Passenger.Email,
		Phone: booking.Passenger.Phone,
	})
	if err != nil {
		utils.LogError(ctx, "booking", "initialize_payment", err,
			zap.String("reference", booking.Reference), zap.String("provider", string(p)))
		return payments.Initialization{}, err
	}

	attempt := models.PaymentAttempt{
		Provider:   p,
		Reference:  init.Reference,
		LastStatus: domain.GatewayPending,
		Raw:        init.Raw,
	}
	if err := s.Bookings.SetPaymentAttempt(ctx, booking.ID, attempt, s.now()()); err != nil {
		return payments.Initialization{}, err
	}
	utils.LogEvent(ctx, "booking", "initialize_payment", "payment initialized",
		zap.String("reference", booking.Reference), zap.String("provider", string(p)),
		zap.String("payment_reference", init.Reference))
	return init, nil
}

// CancelBooking cancels an unpaid booking and frees its seats.
func (s BookingService) CancelBooking(ctx context.Context, bookingRef, actor string) (models.Booking, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return models.Booking{}, err
	}
	switch booking.Status {
	case domain.BookingCancelled:
		return booking, nil
	case domain.BookingConfirmed, domain.BookingCompleted:
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "paid bookings cannot be cancelled"}
	}

	ok, err := s.Bookings.Transition(ctx, models.Transition{
		BookingID:     booking.ID,
		From:          domain.BookingPending,
		To:            domain.BookingCancelled,
		PaymentStatus: booking.PaymentStatus,
	}, s.now()())
	if err != nil {
		return models.Booking{}, err
	}
	if !ok {
		// Lost a race with reconciliation or another cancel; report what won.
		current, err := s.Bookings.GetBookingByID(ctx, booking.ID)
		if err != nil {
			return models.Booking{}, err
		}
		if current.Status == domain.BookingCancelled {
			return current, nil
		}
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "booking is " + string(current.Status)}
	}
	if err := s.Inventory.Release(ctx, booking.TripID, booking.ID); err != nil {
		return models.Booking{}, err
	}
	utils.LogEvent(ctx, "booking", "cancel", "booking cancelled",
		zap.String("reference", booking.Reference), zap.String("actor", actor))
	return s.Bookings.GetBookingByID(ctx, booking.ID)
}

// CompleteBooking is the administrative override CONFIRMED -> COMPLETED.
func (s BookingService) CompleteBooking(ctx context.Context, bookingRef string) (models.Booking, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return models.Booking{}, err
	}
	if booking.Status == domain.BookingCompleted {
		return booking, nil
	}
	if booking.Status != domain.BookingConfirmed {
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "only confirmed bookings can be completed"}
	}
	ok, err := s.Bookings.Transition(ctx, models.Transition{
		BookingID:     booking.ID,
		From:          domain.BookingConfirmed,
		To:            domain.BookingCompleted,
		PaymentStatus: booking.PaymentStatus,
	}, s.now()())
	if err != nil {
		return models.Booking{}, err
	}
	if !ok {
		return models.Booking{}, domain.ConflictError{Resource: "booking", Msg: "booking changed concurrently"}
	}
	utils.LogEvent(ctx, "booking", "complete", "booking completed", zap.String("reference", booking.Reference))
	return s.Bookings.GetBookingByID(ctx, booking.ID)
}

// GetBooking returns the booking with COMPLETED derived once the trip left.
func (s BookingService) GetBooking(ctx context.Context, bookingRef string) (models.Booking, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return models.Booking{}, err
	}
	trip, err := s.Trips.GetTrip(ctx, booking.TripID)
	if err != nil && !domain.IsNotFound(err) {
		return models.Booking{}, err
	}
	booking.Status = booking.EffectiveStatus(trip, s.now()())
	return booking, nil
}

func validatePassenger(p models.PassengerInfo) (models.PassengerInfo, error) {
	p.Name = utils.NormalizeSpace(p.Name)
	p.Email = utils.NormalizeSpace(p.Email)
	p.Phone = utils.NormalizeSpace(p.Phone)
	p.UserID = utils.NormalizeSpace(p.UserID)

	var errs []error
	if p.Name == "" {
		errs = append(errs, domain.ValidationError{Field: "passenger.name", Msg: "required"})
	}
	if p.Email == "" && p.Phone == "" {
		errs = append(errs, domain.ValidationError{Field: "passenger.contact", Msg: "email or phone is required"})
	}
	if p.Email != "" && !utils.ValidEmail(p.Email) {
		errs = append(errs, domain.ValidationError{Field: "passenger.email", Msg: "invalid email"})
	}
	if len(errs) > 0 {
		return p, errors.Join(errs...)
	}
	return p, nil
}
