package services

import (
	"context"
	"time"

	"busbook/internal/domain"
	"busbook/internal/metrics"
	"busbook/internal/notify"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"go.uber.org/zap"
)

const sweepBatchSize = 100

// SweepService runs the periodic jobs: expiring unpaid bookings and sending
// departure reminders.
type SweepService struct {
	Bookings       repositories.BookingStore
	Trips          repositories.TripStore
	Booking        BookingService
	Reconcile      ReconcileService
	Notifier       notify.Notifier
	PendingTimeout time.Duration
	ReminderLead   time.Duration
	Now            utils.Clock
}

func (s SweepService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

// SweepStale cancels PENDING bookings older than the timeout. A booking with
// a payment attempt is verified first so a late payment still confirms it,
// and one whose receipt awaits an admin is kept.
func (s SweepService) SweepStale(ctx context.Context) (int, error) {
	if s.PendingTimeout <= 0 {
		return 0, nil
	}
	stale, err := s.Bookings.ListStalePending(ctx, s.now()().Add(-s.PendingTimeout), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, b := range stale {
		if b.Payment.Reference != "" {
			res, err := s.Reconcile.Verify(ctx, b.Payment.Reference)
			if err != nil {
				// Gateway down or amount under review: leave it for a later run.
				utils.LogError(ctx, "sweep", "verify", err, zap.String("reference", b.Reference))
				continue
			}
			if res.Outcome != domain.OutcomePending || res.AwaitingReview {
				continue
			}
			if err := s.Reconcile.AbandonAttempt(ctx, res.Booking); err != nil {
				// The intent may have just succeeded; the next run verifies it.
				utils.LogError(ctx, "sweep", "abandon", err, zap.String("reference", b.Reference))
				continue
			}
		}
		if _, err := s.Booking.CancelBooking(ctx, b.Reference, "sweeper"); err != nil {
			if !domain.IsConflict(err) {
				utils.LogError(ctx, "sweep", "cancel", err, zap.String("reference", b.Reference))
			}
			continue
		}
		cancelled++
		metrics.SweptBookings.Inc()
	}
	if cancelled > 0 {
		utils.LogEvent(ctx, "sweep", "stale", "stale bookings cancelled", zap.Int("count", cancelled))
	}
	return cancelled, nil
}

// SendReminders notifies confirmed travelers departing within the lead time,
// once per booking.
func (s SweepService) SendReminders(ctx context.Context) (int, error) {
	if s.Notifier == nil || s.ReminderLead <= 0 {
		return 0, nil
	}
	now := s.now()()
	due, err := s.Bookings.ListReminderDue(ctx, now, now.Add(s.ReminderLead), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, b := range due {
		ok, err := s.Bookings.MarkReminderSent(ctx, b.ID)
		if err != nil {
			utils.LogError(ctx, "sweep", "reminder", err, zap.String("reference", b.Reference))
			continue
		}
		if !ok {
			continue
		}
		data := map[string]string{"trip_id": b.TripID}
		if trip, err := s.Trips.GetTrip(ctx, b.TripID); err == nil {
			data["route"] = trip.RouteFrom + " - " + trip.RouteTo
			data["departure_at"] = utils.FormatDateTime(trip.DepartureAt)
		}
		err = s.Notifier.Notify(ctx, notify.Event{
			Type:       notify.DepartureReminder,
			BookingRef: b.Reference,
			Recipient:  notify.Recipient{Name: b.Passenger.Name, Email: b.Passenger.Email, Phone: b.Passenger.Phone},
			Data:       data,
			OccurredAt: now,
		})
		if err != nil {
			utils.LogError(ctx, "sweep", "reminder", err, zap.String("reference", b.Reference))
			continue
		}
		sent++
	}
	return sent, nil
}
