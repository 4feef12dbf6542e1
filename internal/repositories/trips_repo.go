package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	intconfig "busbook/internal/config"
	"busbook/internal/domain"
	"busbook/internal/domain/models"
)

type TripRepository struct {
	DB *sql.DB
}

func (r TripRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r TripRepository) GetTrip(ctx context.Context, id string) (models.Trip, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Trip{}, domain.ValidationError{Field: "trip_id", Msg: "required"}
	}

	var (
		t       models.Trip
		layout  string
		arrival sql.NullTime
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT id, route_from, route_to, total_seats, seat_layout, departure_at, arrival_at, base_price, active
		FROM trips
		WHERE id=? LIMIT 1`, id).Scan(
		&t.ID,
		&t.RouteFrom,
		&t.RouteTo,
		&t.TotalSeats,
		&layout,
		&t.DepartureAt,
		&arrival,
		&t.BasePrice,
		&t.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trip{}, domain.NotFoundError{Resource: "trip", Err: err}
	}
	if err != nil {
		return models.Trip{}, domain.InternalError{Msg: "load trip", Err: err}
	}
	t.SeatLayout = splitList(layout)
	if arrival.Valid {
		t.ArrivalAt = arrival.Time
	}
	return t, nil
}

// UpsertTrip inserts the trip or updates its schedule in place.
func (r TripRepository) UpsertTrip(ctx context.Context, t models.Trip) error {
	var arrival any
	if !t.ArrivalAt.IsZero() {
		arrival = t.ArrivalAt.UTC()
	}
	_, err := r.db().ExecContext(ctx, `
		INSERT INTO trips (id, route_from, route_to, total_seats, seat_layout, departure_at, arrival_at, base_price, active)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON DUPLICATE KEY UPDATE
			route_from=VALUES(route_from),
			route_to=VALUES(route_to),
			total_seats=VALUES(total_seats),
			seat_layout=VALUES(seat_layout),
			departure_at=VALUES(departure_at),
			arrival_at=VALUES(arrival_at),
			base_price=VALUES(base_price),
			active=VALUES(active)`,
		t.ID, t.RouteFrom, t.RouteTo, t.TotalSeats, joinList(t.SeatLayout),
		t.DepartureAt.UTC(), arrival, t.BasePrice, t.Active,
	)
	if err != nil {
		return domain.InternalError{Msg: "save trip", Err: err}
	}
	return nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
