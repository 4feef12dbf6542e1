package models

import (
	"time"

	"busbook/internal/domain"
)

// PassengerInfo is the contact attached to a booking.
type PassengerInfo struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// PaymentAttempt is the single authoritative payment of a booking.
type PaymentAttempt struct {
	Provider   domain.Provider      `json:"provider,omitempty"`
	Reference  string               `json:"reference,omitempty"`
	LastStatus domain.GatewayStatus `json:"lastStatus,omitempty"`
	Raw        string               `json:"-"`
}

// Booking captures a seat reservation and its payment lifecycle.
type Booking struct {
	ID                  string               `json:"id"`
	Reference           string               `json:"reference"`
	TripID              string               `json:"tripId"`
	Passenger           PassengerInfo        `json:"passenger"`
	Seats               []string             `json:"seats"`
	TotalAmount         int64                `json:"totalAmount"`
	Status              domain.BookingStatus `json:"status"`
	PaymentStatus       domain.PaymentStatus `json:"paymentStatus"`
	Payment             PaymentAttempt       `json:"payment"`
	LoyaltyPointsEarned int64                `json:"loyaltyPointsEarned"`
	LoyaltyPointsUsed   int64                `json:"loyaltyPointsUsed"`
	Ticket              string               `json:"ticket,omitempty"`
	ReviewReason        string               `json:"reviewReason,omitempty"`
	ReminderSent        bool                 `json:"-"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// UnderReview reports whether the booking was flagged for manual review.
func (b Booking) UnderReview() bool {
	return b.ReviewReason != ""
}

// EffectiveStatus derives COMPLETED for confirmed bookings whose trip already left.
func (b Booking) EffectiveStatus(trip Trip, now time.Time) domain.BookingStatus {
	if b.Status == domain.BookingConfirmed && trip.Departed(now) {
		return domain.BookingCompleted
	}
	return b.Status
}

// Transition is a compare-and-set request against a booking row. It only
// applies while the stored status equals From.
type Transition struct {
	BookingID     string
	From          domain.BookingStatus
	To            domain.BookingStatus
	PaymentStatus domain.PaymentStatus
	GatewayStatus domain.GatewayStatus
	GatewayRaw    string
	PointsEarned  int64
	Ticket        string
}

// TicketClaims is what a signed ticket encodes.
type TicketClaims struct {
	BookingID string   `json:"bookingId"`
	Reference string   `json:"reference"`
	TripID    string   `json:"tripId"`
	Seats     []string `json:"seats"`
}

// TicketVerification is returned to scanners.
type TicketVerification struct {
	Valid   bool               `json:"valid"`
	State   domain.TicketState `json:"state"`
	Reason  string             `json:"reason,omitempty"`
	Booking *Booking           `json:"booking,omitempty"`
}
