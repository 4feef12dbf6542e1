package models

import (
	"time"

	"busbook/internal/domain"
)

// Receipt is a bank-transfer proof uploaded for the manual rail.
type Receipt struct {
	ID               string               `json:"id"`
	BookingID        string               `json:"bookingId"`
	PaymentReference string               `json:"paymentReference"`
	FileName         string               `json:"fileName"`
	MimeType         string               `json:"mimeType"`
	Content          []byte               `json:"-"`
	Status           domain.ReceiptStatus `json:"status"`
	ApprovedAmount   int64                `json:"approvedAmount,omitempty"`
	Notes            string               `json:"notes,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	ReviewedAt       *time.Time           `json:"reviewedAt,omitempty"`
}
