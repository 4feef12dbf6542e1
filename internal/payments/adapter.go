// Package payments puts every payment rail behind one Adapter contract.
// Business code selects an adapter through the Registry and never branches
// on the provider itself.
package payments

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"busbook/internal/domain"

	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

// ErrIgnoredEvent marks a webhook delivery that carries no payment outcome.
var ErrIgnoredEvent = errors.New("webhook event ignored")

// Payer is the contact handed to the gateway.
type Payer struct {
	Name  string
	Email string
	Phone string
}

// BankInstructions tells a traveler where to send a bank transfer.
type BankInstructions struct {
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	Amount        int64  `json:"amount"`
	Narration     string `json:"narration"`
}

// Initialization is what the client needs to complete a payment.
type Initialization struct {
	Provider         domain.Provider   `json:"provider"`
	Reference        string            `json:"reference"`
	AuthorizationURL string            `json:"authorizationUrl,omitempty"`
	ClientSecret     string            `json:"clientSecret,omitempty"`
	Instructions     *BankInstructions `json:"instructions,omitempty"`
	Raw              string            `json:"-"`
}

// Verification is the normalized gateway view of a payment. AmountConfirmed
// is in canonical units and keeps any fractional part reported by the rail.
type Verification struct {
	Provider        domain.Provider
	Reference       string
	Status          domain.GatewayStatus
	AmountConfirmed decimal.Decimal
	PaidAt          *time.Time
	Raw             string
	// AwaitingReview is set while proof of payment waits on a human.
	AwaitingReview bool
}

type Adapter interface {
	Provider() domain.Provider
	Initialize(ctx context.Context, bookingRef string, amount int64, payer Payer) (Initialization, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}

// Canceller is implemented by rails whose payment attempts stay open for
// retries and must be closed before the booking is given up.
type Canceller interface {
	Cancel(ctx context.Context, reference string) error
}

// WebhookParser authenticates a push notification and extracts the payment
// reference. The outcome itself is always re-read through Verify.
type WebhookParser interface {
	ParseWebhook(payload []byte, header http.Header) (string, error)
}

type Registry struct {
	adapters map[domain.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: map[domain.Provider]Adapter{}}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Provider()] = a
		}
	}
	return r
}

func (r *Registry) Get(p domain.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, domain.ValidationError{Field: "provider", Msg: "payment provider not configured: " + string(p)}
	}
	return a, nil
}

func (r *Registry) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func gatewayErr(p domain.Provider, op string, err error) error {
	return domain.PaymentGatewayError{Provider: p, Op: op, Err: err}
}

// withTimeout bounds a single gateway call.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// newReference builds a provider-scoped payment reference for rails that let
// the merchant choose it.
func newReference(prefix, bookingRef string) string {
	return strings.ToUpper(prefix + "-" + bookingRef + "-" + shortuuid.New()[:8])
}
