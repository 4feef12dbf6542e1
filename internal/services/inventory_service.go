package services

import (
	"context"
	"strings"

	"busbook/internal/cache"
	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/metrics"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// InventoryService guards per-trip seat capacity.
type InventoryService struct {
	Trips repositories.TripStore
	Holds repositories.SeatHoldStore
	Cache cache.SnapshotCache
	Now   utils.Clock
}

func (s InventoryService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

func (s InventoryService) cache() cache.SnapshotCache {
	if s.Cache != nil {
		return s.Cache
	}
	return cache.Noop{}
}

// Reserve holds every seat in seats for bookingID or none of them.
func (s InventoryService) Reserve(ctx context.Context, tripID, bookingID string, seats []string) error {
	seats = utils.NormalizeSeats(seats)
	if len(seats) == 0 {
		return domain.ValidationError{Field: "seats", Msg: "at least one seat is required"}
	}
	if dup := utils.DuplicateSeats(seats); len(dup) > 0 {
		return domain.ValidationError{Field: "seats", Msg: "duplicate seats: " + strings.Join(dup, ",")}
	}

	trip, err := s.Trips.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if !trip.Active {
		return domain.ValidationError{Field: "trip_id", Msg: "trip is not open for booking"}
	}
	if trip.Departed(s.now()()) {
		return domain.ValidationError{Field: "trip_id", Msg: "trip has already departed"}
	}
	if unknown := lo.Reject(seats, func(seat string, _ int) bool { return trip.HasSeat(seat) }); len(unknown) > 0 {
		return domain.ValidationError{Field: "seats", Msg: "unknown seats: " + strings.Join(unknown, ",")}
	}
	if len(seats) > trip.TotalSeats {
		return domain.SeatConflictError{TripID: tripID}
	}

	err = s.Holds.ReserveSeats(ctx, tripID, bookingID, seats, s.now()())
	switch {
	case err == nil:
		metrics.SeatReservations.WithLabelValues("ok").Inc()
	case domain.IsSeatConflict(err):
		metrics.SeatReservations.WithLabelValues("conflict").Inc()
		utils.LogEvent(ctx, "inventory", "reserve", "seat conflict",
			zap.String("trip_id", tripID), zap.Strings("seats", seats))
		return err
	default:
		metrics.SeatReservations.WithLabelValues("error").Inc()
		return err
	}
	s.cache().Invalidate(ctx, tripID)
	return nil
}

// Release drops all holds owned by bookingID on the trip. Safe to repeat.
func (s InventoryService) Release(ctx context.Context, tripID, bookingID string) error {
	n, err := s.Holds.ReleaseSeats(ctx, tripID, bookingID)
	if err != nil {
		return err
	}
	s.cache().Invalidate(ctx, tripID)
	if n > 0 {
		utils.LogEvent(ctx, "inventory", "release", "seats released",
			zap.String("trip_id", tripID), zap.String("booking_id", bookingID), zap.Int("count", n))
	}
	return nil
}

// SaveTrip validates and stores a trip schedule. Capacity cannot drop below
// the seats already held.
func (s InventoryService) SaveTrip(ctx context.Context, trip models.Trip) (models.Trip, error) {
	trip.ID = strings.TrimSpace(trip.ID)
	trip.RouteFrom = utils.NormalizeSpace(trip.RouteFrom)
	trip.RouteTo = utils.NormalizeSpace(trip.RouteTo)
	trip.SeatLayout = utils.NormalizeSeats(trip.SeatLayout)
	if trip.TotalSeats == 0 {
		trip.TotalSeats = len(trip.SeatLayout)
	}
	switch {
	case trip.ID == "":
		return models.Trip{}, domain.ValidationError{Field: "id", Msg: "required"}
	case trip.TotalSeats <= 0:
		return models.Trip{}, domain.ValidationError{Field: "total_seats", Msg: "must be positive"}
	case len(trip.SeatLayout) > 0 && len(trip.SeatLayout) != trip.TotalSeats:
		return models.Trip{}, domain.ValidationError{Field: "seat_layout", Msg: "must list every seat"}
	case len(utils.DuplicateSeats(trip.SeatLayout)) > 0:
		return models.Trip{}, domain.ValidationError{Field: "seat_layout", Msg: "duplicate seats"}
	case trip.BasePrice < 0:
		return models.Trip{}, domain.ValidationError{Field: "base_price", Msg: "must not be negative"}
	case trip.DepartureAt.IsZero():
		return models.Trip{}, domain.ValidationError{Field: "departure_at", Msg: "required"}
	case !trip.ArrivalAt.IsZero() && trip.ArrivalAt.Before(trip.DepartureAt):
		return models.Trip{}, domain.ValidationError{Field: "arrival_at", Msg: "must be after departure"}
	}

	holds, err := s.Holds.HeldSeats(ctx, trip.ID)
	if err != nil {
		return models.Trip{}, err
	}
	if len(holds) > trip.TotalSeats {
		return models.Trip{}, domain.ConflictError{Resource: "trip", Msg: "capacity below seats already held"}
	}
	if err := s.Trips.UpsertTrip(ctx, trip); err != nil {
		return models.Trip{}, err
	}
	s.cache().Invalidate(ctx, trip.ID)
	utils.LogEvent(ctx, "inventory", "save_trip", "trip saved",
		zap.String("trip_id", trip.ID), zap.Int("total_seats", trip.TotalSeats), zap.Bool("active", trip.Active))
	return trip, nil
}

func (s InventoryService) Snapshot(ctx context.Context, tripID string) (models.TripSnapshot, error) {
	c := s.cache()
	if snap, ok := c.Get(ctx, tripID); ok {
		return snap, nil
	}
	version := c.Version(ctx, tripID)
	trip, err := s.Trips.GetTrip(ctx, tripID)
	if err != nil {
		return models.TripSnapshot{}, err
	}
	holds, err := s.Holds.HeldSeats(ctx, tripID)
	if err != nil {
		return models.TripSnapshot{}, err
	}

	snap := models.TripSnapshot{
		TripID:          trip.ID,
		Total:           trip.TotalSeats,
		Available:       max(trip.TotalSeats-len(holds), 0),
		HeldSeatNumbers: lo.Map(holds, func(h models.SeatHold, _ int) string { return h.SeatNumber }),
		TakenAt:         s.now()(),
	}
	c.Set(ctx, snap, version)
	return snap, nil
}
