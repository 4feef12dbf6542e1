package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/metrics"
	"busbook/internal/notify"
	"busbook/internal/payments"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconcileResult is what one verification did to a booking.
type ReconcileResult struct {
	Outcome domain.ReconcileOutcome `json:"outcome"`
	Booking models.Booking          `json:"booking"`
	// AwaitingReview marks a pending outcome whose proof of payment is
	// still with an admin.
	AwaitingReview bool `json:"awaitingReview,omitempty"`
}

// ReconcileService folds gateway verifications into booking state. The
// PENDING -> terminal move is a compare-and-set, so duplicate or concurrent
// deliveries apply side effects once.
type ReconcileService struct {
	Bookings  repositories.BookingStore
	Payments  *payments.Registry
	Inventory InventoryService
	Loyalty   LoyaltyService
	Tickets   TicketService
	Notifier  notify.Notifier
	Currency  string
	Now       utils.Clock
}

func (s ReconcileService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

// Verify polls the booking's rail for paymentRef and applies the result.
func (s ReconcileService) Verify(ctx context.Context, paymentRef string) (ReconcileResult, error) {
	booking, err := s.Bookings.GetBookingByPaymentReference(ctx, paymentRef)
	if err != nil {
		return ReconcileResult{}, err
	}
	if booking.Status.Terminal() {
		return s.alreadyFinal(ctx, booking), nil
	}
	adapter, err := s.Payments.Get(booking.Payment.Provider)
	if err != nil {
		return ReconcileResult{}, err
	}
	v, err := adapter.Verify(ctx, paymentRef)
	if err != nil {
		metrics.GatewayErrors.WithLabelValues(string(booking.Payment.Provider), "verify").Inc()
		utils.LogError(ctx, "reconcile", "verify", err,
			zap.String("reference", booking.Reference), zap.String("payment_reference", paymentRef))
		return ReconcileResult{Outcome: domain.OutcomePending, Booking: booking}, err
	}
	return s.Apply(ctx, v)
}

// VerifyBooking re-verifies the current payment attempt of a booking.
func (s ReconcileService) VerifyBooking(ctx context.Context, bookingRef string) (ReconcileResult, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return ReconcileResult{}, err
	}
	if booking.Status.Terminal() {
		return s.alreadyFinal(ctx, booking), nil
	}
	if booking.Payment.Reference == "" {
		return ReconcileResult{}, domain.ValidationError{Field: "payment", Msg: "no payment has been initialized"}
	}
	return s.Verify(ctx, booking.Payment.Reference)
}

// AbandonAttempt closes the open payment attempt of a booking that is about
// to be given up, so a later retry on the same attempt cannot be charged.
// Rails without retryable attempts need nothing.
func (s ReconcileService) AbandonAttempt(ctx context.Context, booking models.Booking) error {
	if booking.Payment.Reference == "" {
		return nil
	}
	adapter, err := s.Payments.Get(booking.Payment.Provider)
	if err != nil {
		return err
	}
	canceller, ok := adapter.(payments.Canceller)
	if !ok {
		return nil
	}
	if err := canceller.Cancel(ctx, booking.Payment.Reference); err != nil {
		metrics.GatewayErrors.WithLabelValues(string(booking.Payment.Provider), "cancel").Inc()
		return err
	}
	utils.LogEvent(ctx, "reconcile", "abandon", "payment attempt cancelled",
		zap.String("reference", booking.Reference), zap.String("payment_reference", booking.Payment.Reference))
	return nil
}

// HandleWebhook authenticates a push from provider and re-verifies the payment
// it names. Deliveries without a payment outcome return payments.ErrIgnoredEvent.
func (s ReconcileService) HandleWebhook(ctx context.Context, provider string, payload []byte, header http.Header) (ReconcileResult, error) {
	p, err := domain.ParseProvider(provider)
	if err != nil {
		return ReconcileResult{}, err
	}
	adapter, err := s.Payments.Get(p)
	if err != nil {
		return ReconcileResult{}, err
	}
	parser, ok := adapter.(payments.WebhookParser)
	if !ok {
		return ReconcileResult{}, domain.ValidationError{Field: "provider", Msg: "provider does not send webhooks"}
	}
	ref, err := parser.ParseWebhook(payload, header)
	if err != nil {
		if !errors.Is(err, payments.ErrIgnoredEvent) {
			utils.LogError(ctx, "reconcile", "webhook", err, zap.String("provider", string(p)))
		}
		return ReconcileResult{}, err
	}
	return s.Verify(ctx, ref)
}

// Apply moves a booking according to a normalized verification.
func (s ReconcileService) Apply(ctx context.Context, v payments.Verification) (ReconcileResult, error) {
	booking, err := s.Bookings.GetBookingByPaymentReference(ctx, v.Reference)
	if err != nil {
		return ReconcileResult{}, err
	}
	if booking.Status.Terminal() {
		return s.alreadyFinal(ctx, booking), nil
	}

	var res ReconcileResult
	switch {
	case booking.UnderReview():
		res, err = s.recordDuringReview(ctx, booking, v)
	case v.Status == domain.GatewaySuccess:
		expected := decimal.NewFromInt(booking.TotalAmount)
		if !v.AmountConfirmed.Equal(expected) {
			res, err = s.flagMismatch(ctx, booking, v, expected)
			break
		}
		res, err = s.confirm(ctx, booking, v.Status, v.Raw, false)
	case v.Status == domain.GatewayFailed:
		res, err = s.fail(ctx, booking, v.Status, v.Raw)
	default:
		res = ReconcileResult{Outcome: domain.OutcomePending, Booking: booking, AwaitingReview: v.AwaitingReview}
	}
	if res.Outcome != "" {
		metrics.Reconciliations.WithLabelValues(string(v.Provider), string(res.Outcome)).Inc()
	}
	return res, err
}

// ResolveReview settles a booking held for manual review. Accepting confirms
// it as paid; rejecting cancels it and frees the seats.
func (s ReconcileService) ResolveReview(ctx context.Context, bookingRef string, accept bool) (ReconcileResult, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return ReconcileResult{}, err
	}
	if booking.Status.Terminal() {
		return s.alreadyFinal(ctx, booking), nil
	}
	if !booking.UnderReview() {
		return ReconcileResult{}, domain.ConflictError{Resource: "booking", Msg: "booking is not under review"}
	}
	utils.LogEvent(ctx, "reconcile", "resolve_review", "manual review resolved",
		zap.String("reference", booking.Reference), zap.Bool("accepted", accept))
	if accept {
		return s.confirm(ctx, booking, domain.GatewaySuccess, "", true)
	}
	return s.fail(ctx, booking, domain.GatewayFailed, "")
}

// confirm settles a paid booking. Redeemed points are debited before the
// transition; a shortfall sends the booking to review unless an admin has
// already accepted it.
func (s ReconcileService) confirm(ctx context.Context, booking models.Booking, status domain.GatewayStatus, raw string, reviewed bool) (ReconcileResult, error) {
	ticket, err := s.Tickets.Issue(booking)
	if err != nil {
		return ReconcileResult{}, err
	}
	var points int64
	if booking.Passenger.UserID != "" {
		points = s.Loyalty.PointsFor(booking.TotalAmount)
	}

	if booking.LoyaltyPointsUsed > 0 {
		desc := "redeemed for booking " + booking.Reference
		_, err := s.Loyalty.Redeem(ctx, booking.Passenger.UserID, booking.LoyaltyPointsUsed, booking.ID, desc)
		switch {
		case err == nil:
		case domain.IsInsufficientPoints(err) && !reviewed:
			return s.flagPointsShortfall(ctx, booking, status, raw, err)
		case domain.IsInsufficientPoints(err):
			utils.LogError(ctx, "reconcile", "loyalty_redeem", err,
				zap.String("reference", booking.Reference), zap.String("note", "confirmed after review without redemption"))
		default:
			return ReconcileResult{}, err
		}
	}

	won, err := s.Bookings.Transition(ctx, models.Transition{
		BookingID:     booking.ID,
		From:          domain.BookingPending,
		To:            domain.BookingConfirmed,
		PaymentStatus: domain.PaymentCompleted,
		GatewayStatus: status,
		GatewayRaw:    raw,
		PointsEarned:  points,
		Ticket:        ticket,
	}, s.now()())
	if err != nil {
		return ReconcileResult{}, err
	}
	current, err := s.Bookings.GetBookingByID(ctx, booking.ID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !won {
		if current.Status == domain.BookingCancelled {
			s.refundRedemption(ctx, current)
		}
		return s.alreadyFinal(ctx, current), nil
	}

	s.creditLoyalty(ctx, current)
	s.notifyConfirmed(ctx, current)
	utils.LogEvent(ctx, "reconcile", "confirm", "booking confirmed",
		zap.String("reference", current.Reference), zap.Int64("amount", current.TotalAmount),
		zap.Int64("points_earned", points))
	return ReconcileResult{Outcome: domain.OutcomeConfirmed, Booking: current}, nil
}

func (s ReconcileService) fail(ctx context.Context, booking models.Booking, status domain.GatewayStatus, raw string) (ReconcileResult, error) {
	won, err := s.Bookings.Transition(ctx, models.Transition{
		BookingID:     booking.ID,
		From:          domain.BookingPending,
		To:            domain.BookingCancelled,
		PaymentStatus: domain.PaymentFailed,
		GatewayStatus: status,
		GatewayRaw:    raw,
	}, s.now()())
	if err != nil {
		return ReconcileResult{}, err
	}
	if won {
		if err := s.Inventory.Release(ctx, booking.TripID, booking.ID); err != nil {
			return ReconcileResult{}, err
		}
	}
	current, err := s.Bookings.GetBookingByID(ctx, booking.ID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if !won {
		return s.alreadyFinal(ctx, current), nil
	}
	s.refundRedemption(ctx, current)
	utils.LogEvent(ctx, "reconcile", "fail", "payment failed, booking cancelled",
		zap.String("reference", current.Reference))
	return ReconcileResult{Outcome: domain.OutcomeFailed, Booking: current}, nil
}

func (s ReconcileService) flagMismatch(ctx context.Context, booking models.Booking, v payments.Verification, expected decimal.Decimal) (ReconcileResult, error) {
	reason := "amount mismatch: expected " + expected.String() + ", confirmed " + v.AmountConfirmed.String()
	attempt := booking.Payment
	attempt.LastStatus = v.Status
	attempt.Raw = v.Raw
	if err := s.Bookings.FlagForReview(ctx, booking.ID, reason, attempt, s.now()()); err != nil {
		return ReconcileResult{}, err
	}
	booking.ReviewReason = reason
	booking.Payment = attempt
	utils.Logger().Warn("payment under review",
		zap.String("reference", booking.Reference),
		zap.String("expected", expected.String()),
		zap.String("confirmed", v.AmountConfirmed.String()))
	return ReconcileResult{Outcome: domain.OutcomeUnderReview, Booking: booking}, domain.VerificationMismatchError{
		BookingRef: booking.Reference,
		Expected:   expected.String(),
		Confirmed:  v.AmountConfirmed.String(),
	}
}

// recordDuringReview keeps a booking under review whatever the gateway now
// reports. Only ResolveReview moves it on.
func (s ReconcileService) recordDuringReview(ctx context.Context, booking models.Booking, v payments.Verification) (ReconcileResult, error) {
	attempt := booking.Payment
	attempt.LastStatus = v.Status
	attempt.Raw = v.Raw
	if err := s.Bookings.FlagForReview(ctx, booking.ID, booking.ReviewReason, attempt, s.now()()); err != nil {
		return ReconcileResult{}, err
	}
	booking.Payment = attempt
	utils.LogEvent(ctx, "reconcile", "review_hold", "verification recorded, booking stays under review",
		zap.String("reference", booking.Reference), zap.String("gateway_status", string(v.Status)))
	return ReconcileResult{Outcome: domain.OutcomeUnderReview, Booking: booking}, nil
}

func (s ReconcileService) flagPointsShortfall(ctx context.Context, booking models.Booking, status domain.GatewayStatus, raw string, cause error) (ReconcileResult, error) {
	reason := "loyalty points no longer available: " + cause.Error()
	attempt := booking.Payment
	attempt.LastStatus = status
	attempt.Raw = raw
	if err := s.Bookings.FlagForReview(ctx, booking.ID, reason, attempt, s.now()()); err != nil {
		return ReconcileResult{}, err
	}
	booking.ReviewReason = reason
	booking.Payment = attempt
	utils.Logger().Warn("payment under review",
		zap.String("reference", booking.Reference),
		zap.Int64("points_used", booking.LoyaltyPointsUsed),
		zap.Error(cause))
	return ReconcileResult{Outcome: domain.OutcomeUnderReview, Booking: booking}, nil
}

// creditLoyalty runs for the confirming caller only. Ledger failures are
// logged and never undo the confirmation.
func (s ReconcileService) creditLoyalty(ctx context.Context, b models.Booking) {
	if b.Passenger.UserID == "" {
		return
	}
	if _, err := s.Loyalty.Credit(ctx, b.Passenger.UserID, b.ID, b.TotalAmount); err != nil {
		utils.LogError(ctx, "reconcile", "loyalty_credit", err, zap.String("reference", b.Reference))
	}
}

// refundRedemption gives back points debited for a booking that ended
// cancelled.
func (s ReconcileService) refundRedemption(ctx context.Context, b models.Booking) {
	if b.LoyaltyPointsUsed == 0 || b.Passenger.UserID == "" {
		return
	}
	desc := "refund for cancelled booking " + b.Reference
	if _, err := s.Loyalty.Refund(ctx, b.Passenger.UserID, b.ID, b.LoyaltyPointsUsed, desc); err != nil {
		utils.LogError(ctx, "reconcile", "loyalty_refund", err, zap.String("reference", b.Reference))
	}
}

func (s ReconcileService) notifyConfirmed(ctx context.Context, b models.Booking) {
	if s.Notifier == nil {
		return
	}
	recipient := notify.Recipient{Name: b.Passenger.Name, Email: b.Passenger.Email, Phone: b.Passenger.Phone}
	data := map[string]string{
		"trip_id": b.TripID,
		"seats":   strings.Join(b.Seats, ","),
		"amount":  utils.FormatAmount(b.TotalAmount, s.Currency),
		"points":  strconv.FormatInt(b.LoyaltyPointsEarned, 10),
	}
	for _, typ := range []notify.EventType{notify.PaymentReceived, notify.BookingConfirmed} {
		err := s.Notifier.Notify(ctx, notify.Event{
			Type:       typ,
			BookingRef: b.Reference,
			Recipient:  recipient,
			Data:       data,
			OccurredAt: s.now()(),
		})
		if err != nil {
			utils.LogError(ctx, "reconcile", "notify", err,
				zap.String("reference", b.Reference), zap.String("event", string(typ)))
		}
	}
}

func (s ReconcileService) alreadyFinal(ctx context.Context, b models.Booking) ReconcileResult {
	utils.LogEvent(ctx, "reconcile", "skip", "booking already final",
		zap.String("reference", b.Reference), zap.String("status", string(b.Status)))
	return ReconcileResult{Outcome: domain.OutcomeAlreadyFinal, Booking: b}
}
