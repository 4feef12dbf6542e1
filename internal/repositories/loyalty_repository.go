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

// LoyaltyRepository keeps loyalty_transactions append-only and mirrors the
// running sum in loyalty_accounts, updated in the same transaction.
type LoyaltyRepository struct {
	DB *sql.DB
}

func (r LoyaltyRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r LoyaltyRepository) AppendLoyalty(ctx context.Context, t models.LoyaltyTransaction) error {
	if t.UserID == "" {
		return domain.ValidationError{Field: "user_id", Msg: "required"}
	}
	return intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		now := utc(t.CreatedAt)
		if _, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO loyalty_accounts (user_id, balance, lifetime_earned, updated_at) VALUES (?,0,0,?)`,
			t.UserID, now); err != nil {
			return domain.InternalError{Msg: "open loyalty account", Err: err}
		}

		var balance int64
		if err := tx.QueryRowContext(ctx,
			`SELECT balance FROM loyalty_accounts WHERE user_id=? FOR UPDATE`, t.UserID).Scan(&balance); err != nil {
			return domain.InternalError{Msg: "lock loyalty account", Err: err}
		}
		if t.PointsChange < 0 && balance+t.PointsChange < 0 {
			return domain.InsufficientPointsError{UserID: t.UserID, Requested: -t.PointsChange, Balance: balance}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO loyalty_transactions (id, user_id, booking_id, points_change, type, description, created_at)
			VALUES (?,?,?,?,?,?,?)`,
			t.ID, t.UserID, intdb.NullIfEmpty(t.BookingID), t.PointsChange, string(t.Type), t.Description, now)
		if intdb.IsDuplicateKey(err) {
			return domain.ConflictError{Resource: "loyalty", Msg: "entry already recorded for booking", Err: err}
		}
		if err != nil {
			return domain.InternalError{Msg: "insert loyalty transaction", Err: err}
		}

		var earned int64
		if Earning(t.Type) && t.PointsChange > 0 {
			earned = t.PointsChange
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE loyalty_accounts
			SET balance=balance+?, lifetime_earned=lifetime_earned+?, updated_at=?
			WHERE user_id=?`,
			t.PointsChange, earned, now, t.UserID); err != nil {
			return domain.InternalError{Msg: "update loyalty balance", Err: err}
		}
		return nil
	})
}

func (r LoyaltyRepository) HasLoyaltyEntry(ctx context.Context, bookingID string, typ domain.LoyaltyTxType) (bool, error) {
	var n int
	err := r.db().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loyalty_transactions WHERE booking_id=? AND type=?`, bookingID, string(typ)).Scan(&n)
	if err != nil {
		return false, domain.InternalError{Msg: "check loyalty entry", Err: err}
	}
	return n > 0, nil
}

func (r LoyaltyRepository) LoyaltyBalance(ctx context.Context, userID string) (int64, int64, error) {
	var balance, lifetime int64
	err := r.db().QueryRowContext(ctx,
		`SELECT balance, lifetime_earned FROM loyalty_accounts WHERE user_id=?`, userID).Scan(&balance, &lifetime)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, domain.InternalError{Msg: "load loyalty balance", Err: err}
	}
	return balance, lifetime, nil
}

func (r LoyaltyRepository) LoyaltyHistory(ctx context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db().QueryContext(ctx, `
		SELECT id, user_id, COALESCE(booking_id,''), points_change, type, description, created_at
		FROM loyalty_transactions
		WHERE user_id=?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, domain.InternalError{Msg: "list loyalty history", Err: err}
	}
	defer rows.Close()

	out := []models.LoyaltyTransaction{}
	for rows.Next() {
		var t models.LoyaltyTransaction
		var created time.Time
		if err := rows.Scan(&t.ID, &t.UserID, &t.BookingID, &t.PointsChange, &t.Type, &t.Description, &created); err != nil {
			return out, err
		}
		t.CreatedAt = created
		out = append(out, t)
	}
	return out, rows.Err()
}
