package services

import (
	"context"
	"path/filepath"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultReceiptMaxBytes = 5 << 20

var receiptMimeTypes = []string{"image/png", "image/jpeg", "image/webp", "application/pdf"}

// ReceiptService handles bank-transfer proofs. Approving a receipt is what
// flips the manual rail to success.
type ReceiptService struct {
	Receipts  repositories.ReceiptStore
	Bookings  repositories.BookingStore
	Reconcile ReconcileService
	MaxBytes  int64
	Now       utils.Clock
}

func (s ReceiptService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

func (s ReceiptService) maxBytes() int64 {
	if s.MaxBytes > 0 {
		return s.MaxBytes
	}
	return defaultReceiptMaxBytes
}

func (s ReceiptService) Upload(ctx context.Context, bookingRef, fileName string, content []byte) (models.Receipt, error) {
	booking, err := s.Bookings.GetBookingByReference(ctx, bookingRef)
	if err != nil {
		return models.Receipt{}, err
	}
	if booking.Status != domain.BookingPending {
		return models.Receipt{}, domain.ConflictError{Resource: "booking", Msg: "booking is " + string(booking.Status)}
	}
	if booking.Payment.Provider != domain.ProviderManual || booking.Payment.Reference == "" {
		return models.Receipt{}, domain.ValidationError{Field: "payment", Msg: "initialize a bank transfer payment first"}
	}
	if len(content) == 0 {
		return models.Receipt{}, domain.ValidationError{Field: "file", Msg: "required"}
	}
	if int64(len(content)) > s.maxBytes() {
		return models.Receipt{}, domain.ValidationError{Field: "file", Msg: "file too large"}
	}
	mt := mimetype.Detect(content)
	if !mimetype.EqualsAny(mt.String(), receiptMimeTypes...) {
		return models.Receipt{}, domain.ValidationError{Field: "file", Msg: "unsupported file type " + mt.String()}
	}

	receipt := models.Receipt{
		ID:               uuid.NewString(),
		BookingID:        booking.ID,
		PaymentReference: booking.Payment.Reference,
		FileName:         filepath.Base(fileName),
		MimeType:         mt.String(),
		Content:          content,
		Status:           domain.ReceiptPending,
		CreatedAt:        s.now()(),
	}
	if err := s.Receipts.CreateReceipt(ctx, receipt); err != nil {
		return models.Receipt{}, err
	}
	utils.LogEvent(ctx, "receipt", "upload", "receipt uploaded",
		zap.String("reference", booking.Reference), zap.String("receipt_id", receipt.ID),
		zap.String("mime", receipt.MimeType), zap.Int("size", len(content)))
	return receipt, nil
}

// Approve records the transferred amount and reconciles the booking. A
// receipt for a booking that is no longer PENDING stays unreviewed.
func (s ReceiptService) Approve(ctx context.Context, receiptID string, amount int64, notes string) (ReconcileResult, error) {
	if amount <= 0 {
		return ReconcileResult{}, domain.ValidationError{Field: "amount", Msg: "must be positive"}
	}
	pending, err := s.Receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return ReconcileResult{}, err
	}
	booking, err := s.Bookings.GetBookingByID(ctx, pending.BookingID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if booking.Status != domain.BookingPending {
		return ReconcileResult{}, domain.ConflictError{Resource: "booking", Msg: "booking is " + string(booking.Status)}
	}
	receipt, err := s.review(ctx, receiptID, domain.ReceiptApproved, amount, notes)
	if err != nil {
		return ReconcileResult{}, err
	}
	return s.Reconcile.Verify(ctx, receipt.PaymentReference)
}

// Reject marks the receipt rejected. The booking stays pending so the
// traveler can upload another proof until the sweep times it out.
func (s ReceiptService) Reject(ctx context.Context, receiptID, notes string) (models.Receipt, error) {
	return s.review(ctx, receiptID, domain.ReceiptRejected, 0, notes)
}

func (s ReceiptService) review(ctx context.Context, receiptID string, status domain.ReceiptStatus, amount int64, notes string) (models.Receipt, error) {
	receipt, err := s.Receipts.GetReceipt(ctx, receiptID)
	if err != nil {
		return models.Receipt{}, err
	}
	ok, err := s.Receipts.ReviewReceipt(ctx, receiptID, status, amount, utils.NormalizeSpace(notes), s.now()())
	if err != nil {
		return models.Receipt{}, err
	}
	if !ok {
		return models.Receipt{}, domain.ConflictError{Resource: "receipt", Msg: "receipt already reviewed"}
	}
	utils.LogEvent(ctx, "receipt", string(status), "receipt reviewed",
		zap.String("receipt_id", receiptID), zap.String("payment_reference", receipt.PaymentReference),
		zap.Int64("amount", amount))
	return s.Receipts.GetReceipt(ctx, receiptID)
}
