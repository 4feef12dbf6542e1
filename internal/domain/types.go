package domain

import "strings"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

// Terminal reports whether reconciliation may no longer move the booking.
func (s BookingStatus) Terminal() bool {
	return s != BookingPending
}

// HoldsSeats reports whether a booking in this state owns seat holds.
func (s BookingStatus) HoldsSeats() bool {
	return s == BookingPending || s == BookingConfirmed || s == BookingCompleted
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Provider identifies a payment rail.
type Provider string

const (
	ProviderStripe   Provider = "stripe"
	ProviderPaystack Provider = "paystack"
	ProviderManual   Provider = "manual"
)

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case ProviderStripe, ProviderPaystack, ProviderManual:
		return p, nil
	case "bank_transfer", "transfer":
		return ProviderManual, nil
	}
	return "", ValidationError{Field: "provider", Msg: "unsupported payment provider"}
}

// GatewayStatus is the normalized result of a payment verification.
type GatewayStatus string

const (
	GatewaySuccess GatewayStatus = "success"
	GatewayPending GatewayStatus = "pending"
	GatewayFailed  GatewayStatus = "failed"
)

type LoyaltyTxType string

const (
	LoyaltyEarned   LoyaltyTxType = "earned"
	LoyaltyRedeemed LoyaltyTxType = "redeemed"
	LoyaltyExpired  LoyaltyTxType = "expired"
	LoyaltyBonus    LoyaltyTxType = "bonus"
	// LoyaltyRefunded returns redeemed points of a booking that never confirmed.
	LoyaltyRefunded LoyaltyTxType = "refunded"
)

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// TicketState is the boarding evaluation of a ticket at scan time.
type TicketState string

const (
	TicketInvalid       TicketState = "invalid"
	TicketTooEarly      TicketState = "too_early"
	TicketBoarding      TicketState = "boarding"
	TicketBoardingEnded TicketState = "boarding_ended"
)

type ReceiptStatus string

const (
	ReceiptPending  ReceiptStatus = "pending"
	ReceiptApproved ReceiptStatus = "approved"
	ReceiptRejected ReceiptStatus = "rejected"
)

// ReconcileOutcome describes what a single verification did to a booking.
type ReconcileOutcome string

const (
	OutcomeConfirmed    ReconcileOutcome = "confirmed"
	OutcomeFailed       ReconcileOutcome = "failed"
	OutcomePending      ReconcileOutcome = "pending"
	OutcomeUnderReview  ReconcileOutcome = "under_review"
	OutcomeAlreadyFinal ReconcileOutcome = "already_final"
)

// Roles understood by the auth middleware. Travelers hold tokens minted by
// the account service with the shared JWT secret.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleScanner  = "scanner"
	RoleTraveler = "traveler"
)

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
