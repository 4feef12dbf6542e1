package services

import (
	"context"
	"fmt"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/metrics"
	"busbook/internal/repositories"
	"busbook/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tier thresholds on lifetime earned points.
const (
	silverThreshold   = 1000
	goldThreshold     = 5000
	platinumThreshold = 10000
)

type LoyaltyService struct {
	Ledger     repositories.LoyaltyStore
	EarnRate   decimal.Decimal
	PointValue decimal.Decimal
	Now        utils.Clock
}

func (s LoyaltyService) now() utils.Clock {
	if s.Now != nil {
		return s.Now
	}
	return utils.NowUTC
}

// PointsFor is floor(amount x earn rate), computed exactly.
func (s LoyaltyService) PointsFor(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(s.EarnRate).Floor().IntPart()
}

// DiscountFor converts points into currency units, rounding down.
func (s LoyaltyService) DiscountFor(points int64) int64 {
	if points <= 0 {
		return 0
	}
	return decimal.NewFromInt(points).Mul(s.PointValue).Floor().IntPart()
}

// CheckBalance verifies points are available without debiting them.
func (s LoyaltyService) CheckBalance(ctx context.Context, userID string, points int64) error {
	if points <= 0 {
		return nil
	}
	if userID == "" {
		return domain.ValidationError{Field: "user_id", Msg: "required to redeem loyalty points"}
	}
	balance, _, err := s.Ledger.LoyaltyBalance(ctx, userID)
	if err != nil {
		return err
	}
	if points > balance {
		return domain.InsufficientPointsError{UserID: userID, Requested: points, Balance: balance}
	}
	return nil
}

// Credit records the earned entry for a paid booking, at most once.
func (s LoyaltyService) Credit(ctx context.Context, userID, bookingID string, amount int64) (int64, error) {
	points := s.PointsFor(amount)
	if userID == "" || points == 0 {
		return 0, nil
	}
	if done, err := s.Ledger.HasLoyaltyEntry(ctx, bookingID, domain.LoyaltyEarned); err != nil || done {
		return 0, err
	}
	err := s.append(ctx, models.LoyaltyTransaction{
		UserID:       userID,
		BookingID:    bookingID,
		PointsChange: points,
		Type:         domain.LoyaltyEarned,
		Description:  fmt.Sprintf("earned on payment of %d", amount),
	})
	if domain.IsConflict(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return points, nil
}

// Redeem debits points and returns the discount they are worth. A repeat for
// the same booking returns the discount without debiting again.
func (s LoyaltyService) Redeem(ctx context.Context, userID string, points int64, bookingID, description string) (int64, error) {
	if points <= 0 {
		return 0, domain.ValidationError{Field: "points", Msg: "must be positive"}
	}
	if userID == "" {
		return 0, domain.ValidationError{Field: "user_id", Msg: "required"}
	}
	if bookingID != "" {
		done, err := s.Ledger.HasLoyaltyEntry(ctx, bookingID, domain.LoyaltyRedeemed)
		if err != nil {
			return 0, err
		}
		if done {
			return s.DiscountFor(points), nil
		}
	}
	if description == "" {
		description = "redeemed for booking"
	}
	err := s.append(ctx, models.LoyaltyTransaction{
		UserID:       userID,
		BookingID:    bookingID,
		PointsChange: -points,
		Type:         domain.LoyaltyRedeemed,
		Description:  description,
	})
	if domain.IsInsufficientPoints(err) && bookingID != "" {
		// a concurrent redeem for the same booking may have drained the balance
		if done, herr := s.Ledger.HasLoyaltyEntry(ctx, bookingID, domain.LoyaltyRedeemed); herr == nil && done {
			err = nil
		}
	}
	if err != nil && !domain.IsConflict(err) {
		return 0, err
	}
	return s.DiscountFor(points), nil
}

// Refund returns the points redeemed for bookingID, once. It is a no-op
// when nothing was redeemed for the booking.
func (s LoyaltyService) Refund(ctx context.Context, userID, bookingID string, points int64, description string) (int64, error) {
	if userID == "" || bookingID == "" || points <= 0 {
		return 0, nil
	}
	redeemed, err := s.Ledger.HasLoyaltyEntry(ctx, bookingID, domain.LoyaltyRedeemed)
	if err != nil || !redeemed {
		return 0, err
	}
	if done, err := s.Ledger.HasLoyaltyEntry(ctx, bookingID, domain.LoyaltyRefunded); err != nil || done {
		return 0, err
	}
	err = s.append(ctx, models.LoyaltyTransaction{
		UserID:       userID,
		BookingID:    bookingID,
		PointsChange: points,
		Type:         domain.LoyaltyRefunded,
		Description:  description,
	})
	if domain.IsConflict(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return points, nil
}

// Grant adds bonus points outside the booking flow.
func (s LoyaltyService) Grant(ctx context.Context, userID string, points int64, description string) error {
	if points <= 0 {
		return domain.ValidationError{Field: "points", Msg: "must be positive"}
	}
	if userID == "" {
		return domain.ValidationError{Field: "user_id", Msg: "required"}
	}
	return s.append(ctx, models.LoyaltyTransaction{
		UserID:       userID,
		PointsChange: points,
		Type:         domain.LoyaltyBonus,
		Description:  description,
	})
}

// Expire removes points; the balance never goes below zero.
func (s LoyaltyService) Expire(ctx context.Context, userID string, points int64, description string) error {
	if points <= 0 {
		return domain.ValidationError{Field: "points", Msg: "must be positive"}
	}
	return s.append(ctx, models.LoyaltyTransaction{
		UserID:       userID,
		PointsChange: -points,
		Type:         domain.LoyaltyExpired,
		Description:  description,
	})
}

func (s LoyaltyService) Account(ctx context.Context, userID string, historyLimit int) (models.LoyaltyAccount, error) {
	if userID == "" {
		return models.LoyaltyAccount{}, domain.ValidationError{Field: "user_id", Msg: "required"}
	}
	balance, lifetime, err := s.Ledger.LoyaltyBalance(ctx, userID)
	if err != nil {
		return models.LoyaltyAccount{}, err
	}
	history, err := s.Ledger.LoyaltyHistory(ctx, userID, historyLimit)
	if err != nil {
		return models.LoyaltyAccount{}, err
	}
	return models.LoyaltyAccount{
		UserID:         userID,
		Balance:        balance,
		LifetimeEarned: lifetime,
		Tier:           TierFor(lifetime),
		History:        history,
	}, nil
}

func TierFor(lifetimeEarned int64) domain.Tier {
	switch {
	case lifetimeEarned >= platinumThreshold:
		return domain.TierPlatinum
	case lifetimeEarned >= goldThreshold:
		return domain.TierGold
	case lifetimeEarned >= silverThreshold:
		return domain.TierSilver
	default:
		return domain.TierBronze
	}
}

func (s LoyaltyService) append(ctx context.Context, t models.LoyaltyTransaction) error {
	t.ID = uuid.NewString()
	t.CreatedAt = s.now()()
	if err := s.Ledger.AppendLoyalty(ctx, t); err != nil {
		return err
	}
	metrics.LoyaltyPoints.WithLabelValues(string(t.Type)).Add(float64(abs(t.PointsChange)))
	utils.LogEvent(ctx, "loyalty", string(t.Type), "ledger entry appended",
		zap.String("user_id", t.UserID), zap.String("booking_id", t.BookingID), zap.Int64("points", t.PointsChange))
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
