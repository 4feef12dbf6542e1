package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/phpdave11/gofpdf"
	"go.uber.org/zap"
)

// DocsService renders the printable ticket and invoice of a paid booking.
type DocsService struct {
	Bookings repositories.BookingStore
	Trips    repositories.TripStore
	Currency string
	Loader   func(ctx context.Context, bookingRef string) (bookingDocData, error)
}

type bookingDocData struct {
	Booking models.Booking
	Trip    models.Trip
}

func (s DocsService) TicketPDF(ctx context.Context, bookingRef string) ([]byte, string, error) {
	data, err := s.load(ctx, bookingRef)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(ctx, "docs", "ticket_pdf", "ticket rendered", zap.String("reference", data.Booking.Reference))
	return buildTicketPDF(data)
}

func (s DocsService) InvoicePDF(ctx context.Context, bookingRef string) ([]byte, string, error) {
	data, err := s.load(ctx, bookingRef)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(ctx, "docs", "invoice_pdf", "invoice rendered", zap.String("reference", data.Booking.Reference))
	return buildInvoicePDF(data, s.Currency)
}

func (s DocsService) load(ctx context.Context, bookingRef string) (bookingDocData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, bookingRef)
	}
	b, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return bookingDocData{}, err
	}
	if b.Ticket == "" || (b.Status != domain.BookingConfirmed && b.Status != domain.BookingCompleted) {
		return bookingDocData{}, domain.ConflictError{Resource: "booking", Msg: "booking is not paid"}
	}
	trip, err := s.Trips.GetTrip(ctx, b.TripID)
	if err != nil {
		return bookingDocData{}, err
	}
	return bookingDocData{Booking: b, Trip: trip}, nil
}

func buildTicketPDF(d bookingDocData) ([]byte, string, error) {
	b, t := d.Booking, d.Trip
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket "+b.Reference, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Passenger   : %s", safe(b.Passenger.Name, "-")),
		fmt.Sprintf("Phone       : %s", safe(b.Passenger.Phone, "-")),
		fmt.Sprintf("Seats       : %s", safe(strings.Join(b.Seats, ", "), "-")),
		fmt.Sprintf("Route       : %s -> %s", safe(t.RouteFrom, "-"), safe(t.RouteTo, "-")),
		fmt.Sprintf("Departure   : %s", formatStamp(t.DepartureAt)),
		fmt.Sprintf("Arrival     : %s", formatStamp(t.ArrivalAt)),
		fmt.Sprintf("Booking ref : %s", b.Reference),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Courier", "", 7)
	pdf.MultiCell(0, 4, b.Ticket, "", "", false)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Present this ticket at boarding. Boarding closes shortly after departure.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("ETICKET_%s.pdf", safeFilenamePart(b.Reference)), nil
}

func buildInvoicePDF(d bookingDocData, currency string) ([]byte, string, error) {
	b, t := d.Booking, d.Trip
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+b.Reference, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Invoice no : INV-"+b.Reference)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date       : "+formatStamp(b.UpdatedAt))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Name  : %s", safe(b.Passenger.Name, "-")))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Email : %s", safe(b.Passenger.Email, "-")))
	pdf.Ln(10)

	desc := fmt.Sprintf("Bus ticket %s -> %s (%s), seats %s",
		safe(t.RouteFrom, "-"), safe(t.RouteTo, "-"), formatStamp(t.DepartureAt), strings.Join(b.Seats, ", "))
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, desc, "", "", false)
	pdf.Ln(2)
	pdf.Cell(0, 6, fmt.Sprintf("%d x %s", len(b.Seats), utils.FormatAmount(t.BasePrice, currency)))
	pdf.Ln(6)
	if b.LoyaltyPointsUsed > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("Loyalty points redeemed: %d", b.LoyaltyPointsUsed))
		pdf.Ln(6)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+utils.FormatAmount(b.TotalAmount, currency))
	pdf.Ln(12)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("INVOICE_%s.pdf", safeFilenamePart(b.Reference)), nil
}

func safe(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return utils.FormatDateTime(t)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func safeFilenamePart(s string) string {
	s = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "NA"
	}
	return s
}
