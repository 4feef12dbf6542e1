package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"busbook/internal/domain"
	"busbook/internal/utils"
)

type PaystackConfig struct {
	SecretKey       string
	BaseURL         string
	CallbackURL     string
	MinorUnitFactor int64
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// PaystackAdapter drives redirect payments through the Paystack
// transaction API. Amounts travel in kobo.
type PaystackAdapter struct {
	cfg    PaystackConfig
	client *http.Client
}

func NewPaystackAdapter(cfg PaystackConfig) *PaystackAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MinorUnitFactor <= 0 {
		cfg.MinorUnitFactor = 100
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &PaystackAdapter{cfg: cfg, client: client}
}

func (a *PaystackAdapter) Provider() domain.Provider { return domain.ProviderPaystack }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}

func (a *PaystackAdapter) Initialize(ctx context.Context, bookingRef string, amount int64, payer Payer) (Initialization, error) {
	if strings.TrimSpace(payer.Email) == "" {
		return Initialization{}, domain.ValidationError{Field: "email", Msg: "email is required for card redirect payments"}
	}
	body := map[string]any{
		"email":     payer.Email,
		"amount":    utils.ToMinorUnits(amount, a.cfg.MinorUnitFactor),
		"reference": newReference("PSK", bookingRef),
		"metadata":  map[string]string{"booking_reference": bookingRef},
	}
	if a.cfg.CallbackURL != "" {
		body["callback_url"] = a.cfg.CallbackURL
	}

	env, raw, err := a.call(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return Initialization{}, gatewayErr(domain.ProviderPaystack, "initialize", err)
	}
	var data paystackInitData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Initialization{}, gatewayErr(domain.ProviderPaystack, "initialize", err)
	}
	return Initialization{
		Provider:         domain.ProviderPaystack,
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		Raw:              raw,
	}, nil
}

func (a *PaystackAdapter) Verify(ctx context.Context, reference string) (Verification, error) {
	env, raw, err := a.call(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return Verification{}, gatewayErr(domain.ProviderPaystack, "verify", err)
	}
	var data paystackVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Verification{}, gatewayErr(domain.ProviderPaystack, "verify", err)
	}

	v := Verification{
		Provider:        domain.ProviderPaystack,
		Reference:       reference,
		Status:          paystackStatus(data.Status),
		AmountConfirmed: utils.FromMinorUnits(data.Amount, a.cfg.MinorUnitFactor),
		Raw:             raw,
	}
	if data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
			v.PaidAt = &t
		}
	}
	return v, nil
}

// ParseWebhook checks x-paystack-signature (HMAC-SHA512 of the raw body
// keyed with the secret key) and returns the transaction reference.
func (a *PaystackAdapter) ParseWebhook(payload []byte, header http.Header) (string, error) {
	mac := hmac.New(sha512.New, []byte(a.cfg.SecretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(header.Get("x-paystack-signature")))) {
		return "", domain.ValidationError{Field: "signature", Msg: "invalid paystack webhook signature"}
	}

	var event struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", domain.ValidationError{Field: "payload", Msg: "malformed paystack event", Err: err}
	}
	if !strings.HasPrefix(event.Event, "charge.") || event.Data.Reference == "" {
		return "", ErrIgnoredEvent
	}
	return event.Data.Reference, nil
}

func (a *PaystackAdapter) call(ctx context.Context, method, path string, body any) (paystackEnvelope, string, error) {
	ctx, cancel := withTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return paystackEnvelope{}, "", err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return paystackEnvelope{}, "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return paystackEnvelope{}, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return paystackEnvelope{}, "", err
	}
	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return paystackEnvelope{}, string(raw), fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		return env, string(raw), fmt.Errorf("http %d: %s", resp.StatusCode, env.Message)
	}
	return env, string(raw), nil
}

func paystackStatus(s string) domain.GatewayStatus {
	switch strings.ToLower(s) {
	case "success":
		return domain.GatewaySuccess
	case "failed", "reversed":
		return domain.GatewayFailed
	default:
		// abandoned, ongoing, pending, queued: the customer may still pay
		return domain.GatewayPending
	}
}
