package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocsServiceGenerate(t *testing.T) {
	loader := func(_ context.Context, ref string) (bookingDocData, error) {
		return bookingDocData{
			Booking: models.Booking{
				Reference:   ref,
				Passenger:   models.PassengerInfo{Name: "Tester", Phone: "0800"},
				Seats:       []string{"A1", "A2"},
				TotalAmount: 20000,
				Status:      domain.BookingConfirmed,
				Ticket:      "header.payload.signature",
				UpdatedAt:   time.Now(),
			},
			Trip: models.Trip{
				RouteFrom:   "Lagos",
				RouteTo:     "Abuja",
				BasePrice:   10000,
				DepartureAt: time.Now().Add(24 * time.Hour),
			},
		}, nil
	}
	svc := DocsService{Loader: loader, Currency: "ngn"}

	pdf, filename, err := svc.TicketPDF(context.Background(), "BK-ABCD2345")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, "ETICKET_BK-ABCD2345.pdf", filename)

	invoice, invName, err := svc.InvoicePDF(context.Background(), "BK-ABCD2345")
	require.NoError(t, err)
	assert.NotEmpty(t, invoice)
	assert.Equal(t, "INVOICE_BK-ABCD2345.pdf", invName)
}

func TestDocsServiceRejectsUnpaidBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.book(t, "A1")

	_, _, err := env.docs.TicketPDF(context.Background(), booking.Reference)
	assert.True(t, domain.IsConflict(err))
}

func TestSafeFilenamePart(t *testing.T) {
	assert.Equal(t, "BK-1_2", safeFilenamePart("BK-1/2"))
	assert.Equal(t, "NA", safeFilenamePart("  "))
}
