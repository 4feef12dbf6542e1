package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"busbook/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaystackInitializeSendsKobo(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.test/abc","access_code":"abc","reference":"` + got["reference"].(string) + `"}}`))
	}))
	defer srv.Close()

	a := NewPaystackAdapter(PaystackConfig{SecretKey: "sk_test", BaseURL: srv.URL, Timeout: time.Second})
	init, err := a.Initialize(context.Background(), "BK-ABC12345", 15000, Payer{Email: "ada@example.com"})
	require.NoError(t, err)

	assert.Equal(t, float64(1500000), got["amount"])
	assert.True(t, strings.HasPrefix(init.Reference, "PSK-BK-ABC12345-"))
	assert.Equal(t, "https://checkout.test/abc", init.AuthorizationURL)
	assert.Equal(t, domain.ProviderPaystack, init.Provider)
}

func TestPaystackInitializeRequiresEmail(t *testing.T) {
	a := NewPaystackAdapter(PaystackConfig{SecretKey: "sk_test"})
	_, err := a.Initialize(context.Background(), "BK-1", 100, Payer{Phone: "0800"})
	assert.True(t, domain.IsValidation(err))
}

func TestPaystackVerifyStatuses(t *testing.T) {
	cases := map[string]domain.GatewayStatus{
		"success":   domain.GatewaySuccess,
		"failed":    domain.GatewayFailed,
		"reversed":  domain.GatewayFailed,
		"abandoned": domain.GatewayPending,
		"ongoing":   domain.GatewayPending,
	}
	for status, want := range cases {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/PSK-1", r.URL.Path)
				_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"status":"` + status + `","reference":"PSK-1","amount":1500050,"paid_at":"2025-01-01T08:00:00Z"}}`))
			}))
			defer srv.Close()

			a := NewPaystackAdapter(PaystackConfig{SecretKey: "sk", BaseURL: srv.URL})
			v, err := a.Verify(context.Background(), "PSK-1")
			require.NoError(t, err)
			assert.Equal(t, want, v.Status)
			assert.True(t, v.AmountConfirmed.Equal(decimal.RequireFromString("15000.5")))
			require.NotNil(t, v.PaidAt)
		})
	}
}

func TestPaystackVerifyTimeoutIsGatewayError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a := NewPaystackAdapter(PaystackConfig{SecretKey: "sk", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := a.Verify(context.Background(), "PSK-1")
	require.Error(t, err)
	assert.True(t, domain.IsPaymentGateway(err))
}

func TestPaystackVerifyRejectedByGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer srv.Close()

	a := NewPaystackAdapter(PaystackConfig{SecretKey: "sk", BaseURL: srv.URL})
	_, err := a.Verify(context.Background(), "missing")
	assert.True(t, domain.IsPaymentGateway(err))
	assert.Contains(t, err.Error(), "Transaction reference not found")
}

func TestPaystackParseWebhook(t *testing.T) {
	a := NewPaystackAdapter(PaystackConfig{SecretKey: "sk_live"})
	payload := []byte(`{"event":"charge.success","data":{"reference":"PSK-BK-1-XYZ"}}`)
	mac := hmac.New(sha512.New, []byte("sk_live"))
	mac.Write(payload)

	h := http.Header{}
	h.Set("x-paystack-signature", hex.EncodeToString(mac.Sum(nil)))
	ref, err := a.ParseWebhook(payload, h)
	require.NoError(t, err)
	assert.Equal(t, "PSK-BK-1-XYZ", ref)

	h.Set("x-paystack-signature", "deadbeef")
	_, err = a.ParseWebhook(payload, h)
	assert.True(t, domain.IsValidation(err))

	other := []byte(`{"event":"transfer.success","data":{"reference":"T-1"}}`)
	mac = hmac.New(sha512.New, []byte("sk_live"))
	mac.Write(other)
	h.Set("x-paystack-signature", hex.EncodeToString(mac.Sum(nil)))
	_, err = a.ParseWebhook(other, h)
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}
