package models

import (
	"time"

	"busbook/internal/domain"
)

// LoyaltyTransaction is one append-only ledger entry.
type LoyaltyTransaction struct {
	ID           string               `json:"id"`
	UserID       string               `json:"userId"`
	BookingID    string               `json:"bookingId,omitempty"`
	PointsChange int64                `json:"pointsChange"`
	Type         domain.LoyaltyTxType `json:"type"`
	Description  string               `json:"description"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// LoyaltyAccount is derived from the ledger.
type LoyaltyAccount struct {
	UserID         string               `json:"userId"`
	Balance        int64                `json:"balance"`
	LifetimeEarned int64                `json:"lifetimeEarned"`
	Tier           domain.Tier          `json:"tier"`
	History        []LoyaltyTransaction `json:"history,omitempty"`
}
