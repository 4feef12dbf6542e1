package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	intconfig "busbook/internal/config"
	intdb "busbook/internal/db"
	"busbook/internal/domain"
	"busbook/internal/domain/models"
)

// PaymentRepository stores bank-transfer receipts in payment_validations.
type PaymentRepository struct {
	DB *sql.DB
}

func (r PaymentRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

const receiptColumns = `id, booking_id, payment_reference, file_name, mime_type, content, status,
	COALESCE(approved_amount,0), COALESCE(notes,''), created_at, reviewed_at`

func scanReceipt(row rowScanner) (models.Receipt, error) {
	var (
		p        models.Receipt
		reviewed sql.NullTime
	)
	if err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.PaymentReference,
		&p.FileName,
		&p.MimeType,
		&p.Content,
		&p.Status,
		&p.ApprovedAmount,
		&p.Notes,
		&p.CreatedAt,
		&reviewed,
	); err != nil {
		return models.Receipt{}, err
	}
	if reviewed.Valid {
		t := reviewed.Time
		p.ReviewedAt = &t
	}
	return p, nil
}

func (r PaymentRepository) CreateReceipt(ctx context.Context, p models.Receipt) error {
	_, err := r.db().ExecContext(ctx, `
		INSERT INTO payment_validations (id, booking_id, payment_reference, file_name, mime_type, content, status, notes, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.BookingID, p.PaymentReference, p.FileName, p.MimeType, p.Content,
		string(p.Status), intdb.NullIfEmpty(p.Notes), utc(p.CreatedAt))
	if err != nil {
		return domain.InternalError{Msg: "insert receipt", Err: err}
	}
	return nil
}

func (r PaymentRepository) GetReceipt(ctx context.Context, id string) (models.Receipt, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+receiptColumns+` FROM payment_validations WHERE id=? LIMIT 1`, id)
	p, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Receipt{}, domain.NotFoundError{Resource: "payment validation", Err: err}
	}
	if err != nil {
		return models.Receipt{}, domain.InternalError{Msg: "load receipt", Err: err}
	}
	return p, nil
}

// LatestReceipt returns the newest receipt uploaded for a payment reference.
func (r PaymentRepository) LatestReceipt(ctx context.Context, paymentRef string) (models.Receipt, error) {
	row := r.db().QueryRowContext(ctx, `
		SELECT `+receiptColumns+`
		FROM payment_validations
		WHERE payment_reference=?
		ORDER BY created_at DESC
		LIMIT 1`, paymentRef)
	p, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Receipt{}, domain.NotFoundError{Resource: "payment validation", Err: err}
	}
	if err != nil {
		return models.Receipt{}, domain.InternalError{Msg: "load receipt", Err: err}
	}
	return p, nil
}

// ReviewReceipt decides a pending receipt once; later calls report false.
func (r PaymentRepository) ReviewReceipt(ctx context.Context, id string, status domain.ReceiptStatus, amount int64, notes string, at time.Time) (bool, error) {
	var approved any
	if status == domain.ReceiptApproved {
		approved = amount
	}
	res, err := r.db().ExecContext(ctx, `
		UPDATE payment_validations
		SET status=?, approved_amount=?, notes=COALESCE(?, notes), reviewed_at=?
		WHERE id=? AND status=?`,
		string(status), approved, intdb.NullIfEmpty(notes), utc(at), id, string(domain.ReceiptPending))
	if err != nil {
		return false, domain.InternalError{Msg: "review receipt", Err: err}
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
