package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"busbook/internal/domain"
	"busbook/internal/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	Currency        string
	MinorUnitFactor int64
	Timeout         time.Duration
	// APIURL overrides the Stripe endpoint (tests, stripe-mock).
	APIURL     string
	HTTPClient *http.Client
}

// StripeAdapter drives card payments through PaymentIntents.
type StripeAdapter struct {
	cfg     StripeConfig
	intents *paymentintent.Client
}

func NewStripeAdapter(cfg StripeConfig) *StripeAdapter {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	if cfg.MinorUnitFactor <= 0 {
		cfg.MinorUnitFactor = 100
	}
	return &StripeAdapter{
		cfg: cfg,
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
	}
}

func (a *StripeAdapter) Provider() domain.Provider { return domain.ProviderStripe }

func (a *StripeAdapter) Initialize(ctx context.Context, bookingRef string, amount int64, payer Payer) (Initialization, error) {
	ctx, cancel := withTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(utils.ToMinorUnits(amount, a.cfg.MinorUnitFactor)),
		Currency: stripe.String(strings.ToLower(a.cfg.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Bus booking " + bookingRef),
	}
	if payer.Email != "" {
		params.ReceiptEmail = stripe.String(payer.Email)
	}
	params.Context = ctx
	params.AddMetadata("booking_reference", bookingRef)

	pi, err := a.intents.New(params)
	if err != nil {
		return Initialization{}, gatewayErr(domain.ProviderStripe, "initialize", err)
	}
	return Initialization{
		Provider:     domain.ProviderStripe,
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Raw:          stripeRaw(pi),
	}, nil
}

func (a *StripeAdapter) Verify(ctx context.Context, reference string) (Verification, error) {
	ctx, cancel := withTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	pi, err := a.intents.Get(reference, params)
	if err != nil {
		return Verification{}, gatewayErr(domain.ProviderStripe, "verify", err)
	}

	v := Verification{
		Provider:        domain.ProviderStripe,
		Reference:       pi.ID,
		Status:          stripeStatus(pi),
		AmountConfirmed: utils.FromMinorUnits(pi.AmountReceived, a.cfg.MinorUnitFactor),
		Raw:             stripeRaw(pi),
	}
	if v.Status == domain.GatewaySuccess && pi.LatestCharge != nil && pi.LatestCharge.Created > 0 {
		paid := time.Unix(pi.LatestCharge.Created, 0).UTC()
		v.PaidAt = &paid
	}
	return v, nil
}

// Cancel closes an intent that is still open for retries.
func (a *StripeAdapter) Cancel(ctx context.Context, reference string) error {
	ctx, cancel := withTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	if _, err := a.intents.Cancel(reference, params); err != nil {
		return gatewayErr(domain.ProviderStripe, "cancel", err)
	}
	return nil
}

// ParseWebhook checks the Stripe-Signature header and returns the intent id
// of payment_intent.* events.
func (a *StripeAdapter) ParseWebhook(payload []byte, header http.Header) (string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), a.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", domain.ValidationError{Field: "signature", Msg: "invalid stripe webhook signature", Err: err}
	}
	if !strings.HasPrefix(string(event.Type), "payment_intent.") || event.Data == nil {
		return "", ErrIgnoredEvent
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil || pi.ID == "" {
		return "", domain.ValidationError{Field: "payload", Msg: "malformed payment intent event", Err: err}
	}
	return pi.ID, nil
}

func stripeStatus(pi *stripe.PaymentIntent) domain.GatewayStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.GatewaySuccess
	case stripe.PaymentIntentStatusCanceled:
		return domain.GatewayFailed
	}
	// requires_payment_method after a decline is still open for another card
	return domain.GatewayPending
}

func stripeRaw(pi *stripe.PaymentIntent) string {
	raw, _ := json.Marshal(map[string]any{
		"id":              pi.ID,
		"status":          pi.Status,
		"amount":          pi.Amount,
		"amount_received": pi.AmountReceived,
		"currency":        pi.Currency,
	})
	return string(raw)
}
