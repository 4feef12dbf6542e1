package payments

import (
	"context"

	"busbook/internal/domain"
	"busbook/internal/domain/models"

	"github.com/shopspring/decimal"
)

// ReceiptLookup is the slice of the receipt store the manual rail reads.
type ReceiptLookup interface {
	LatestReceipt(ctx context.Context, paymentRef string) (models.Receipt, error)
}

type BankAccount struct {
	BankName      string
	AccountName   string
	AccountNumber string
}

// ManualAdapter is the bank-transfer rail. A payment stays pending until an
// administrator approves the uploaded receipt.
type ManualAdapter struct {
	Account  BankAccount
	Receipts ReceiptLookup
}

func (a *ManualAdapter) Provider() domain.Provider { return domain.ProviderManual }

func (a *ManualAdapter) Initialize(_ context.Context, bookingRef string, amount int64, _ Payer) (Initialization, error) {
	ref := newReference("MAN", bookingRef)
	return Initialization{
		Provider:  domain.ProviderManual,
		Reference: ref,
		Instructions: &BankInstructions{
			BankName:      a.Account.BankName,
			AccountName:   a.Account.AccountName,
			AccountNumber: a.Account.AccountNumber,
			Amount:        amount,
			Narration:     ref,
		},
	}, nil
}

func (a *ManualAdapter) Verify(ctx context.Context, reference string) (Verification, error) {
	v := Verification{
		Provider:        domain.ProviderManual,
		Reference:       reference,
		Status:          domain.GatewayPending,
		AmountConfirmed: decimal.Zero,
	}
	receipt, err := a.Receipts.LatestReceipt(ctx, reference)
	if domain.IsNotFound(err) {
		return v, nil
	}
	if err != nil {
		return Verification{}, gatewayErr(domain.ProviderManual, "verify", err)
	}
	// a rejected receipt leaves the booking open for a new upload
	switch receipt.Status {
	case domain.ReceiptApproved:
		v.Status = domain.GatewaySuccess
		v.AmountConfirmed = decimal.NewFromInt(receipt.ApprovedAmount)
		v.PaidAt = receipt.ReviewedAt
	case domain.ReceiptPending:
		v.AwaitingReview = true
	}
	v.Raw = string(receipt.Status)
	return v, nil
}
