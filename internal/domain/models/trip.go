package models

import "time"

// Trip is a scheduled departure with a fixed seat layout.
type Trip struct {
	ID          string    `json:"id"`
	RouteFrom   string    `json:"routeFrom"`
	RouteTo     string    `json:"routeTo"`
	TotalSeats  int       `json:"totalSeats"`
	SeatLayout  []string  `json:"seatLayout"`
	DepartureAt time.Time `json:"departureAt"`
	ArrivalAt   time.Time `json:"arrivalAt"`
	BasePrice   int64     `json:"basePrice"`
	Active      bool      `json:"active"`
}

// HasSeat reports whether seat is part of the trip layout. An empty layout
// accepts any seat number.
func (t Trip) HasSeat(seat string) bool {
	if len(t.SeatLayout) == 0 {
		return true
	}
	for _, s := range t.SeatLayout {
		if s == seat {
			return true
		}
	}
	return false
}

// Departed reports whether the trip left before now.
func (t Trip) Departed(now time.Time) bool {
	return !t.DepartureAt.IsZero() && now.After(t.DepartureAt)
}

// SeatHold is one held seat owned by a booking.
type SeatHold struct {
	TripID     string    `json:"tripId"`
	SeatNumber string    `json:"seatNumber"`
	BookingID  string    `json:"bookingId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TripSnapshot is the read model served to seat maps.
type TripSnapshot struct {
	TripID          string    `json:"tripId"`
	Total           int       `json:"total"`
	Available       int       `json:"available"`
	HeldSeatNumbers []string  `json:"heldSeatNumbers"`
	TakenAt         time.Time `json:"takenAt"`
}
