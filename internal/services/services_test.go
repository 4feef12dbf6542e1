package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"busbook/internal/domain"
	"busbook/internal/domain/models"
	"busbook/internal/notify"
	"busbook/internal/payments"
	"busbook/internal/repositories/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testTripID = "trip-lag-abj"
	testUserID = "user-1"
)

var testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// fakeRail is a scripted gateway keyed by payment reference.
type fakeRail struct {
	mu      sync.Mutex
	seq     int
	results map[string]payments.Verification
	err     error
	calls   int

	cancelErr error
	cancelled []string
}

func newFakeRail() *fakeRail {
	return &fakeRail{results: map[string]payments.Verification{}}
}

func (f *fakeRail) Provider() domain.Provider { return domain.ProviderStripe }

func (f *fakeRail) Initialize(_ context.Context, bookingRef string, amount int64, _ payments.Payer) (payments.Initialization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return payments.Initialization{
		Provider:         domain.ProviderStripe,
		Reference:        fmt.Sprintf("pi_%s_%d", bookingRef, f.seq),
		AuthorizationURL: "https://pay.example/" + bookingRef,
		Raw:              fmt.Sprintf(`{"amount":%d}`, amount),
	}, nil
}

func (f *fakeRail) Verify(_ context.Context, ref string) (payments.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return payments.Verification{}, f.err
	}
	if v, ok := f.results[ref]; ok {
		return v, nil
	}
	return payments.Verification{Provider: domain.ProviderStripe, Reference: ref, Status: domain.GatewayPending}, nil
}

// ParseWebhook treats the payload as the bare payment reference.
func (f *fakeRail) ParseWebhook(payload []byte, _ http.Header) (string, error) {
	if string(payload) == "ignore" {
		return "", payments.ErrIgnoredEvent
	}
	return string(payload), nil
}

func (f *fakeRail) Cancel(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, ref)
	f.results[ref] = payments.Verification{Provider: domain.ProviderStripe, Reference: ref, Status: domain.GatewayFailed}
	return nil
}

func (f *fakeRail) settle(ref string, status domain.GatewayStatus, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[ref] = payments.Verification{
		Provider:        domain.ProviderStripe,
		Reference:       ref,
		Status:          status,
		AmountConfirmed: decimal.NewFromInt(amount),
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingNotifier) count(typ notify.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

type testEnv struct {
	store   *memory.Store
	rail    *fakeRail
	manual  *payments.ManualAdapter
	notes   *recordingNotifier
	clock   time.Time
	policy  BoardingPolicy
	secret  []byte
	inv     InventoryService
	loyalty LoyaltyService
	tickets TicketService
	booking BookingService
	recon   ReconcileService
	receipt ReceiptService
	sweep   SweepService
	docs    DocsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  memory.New(),
		rail:   newFakeRail(),
		notes:  &recordingNotifier{},
		clock:  testNow,
		policy: BoardingPolicy{Window: 2 * time.Hour, Grace: 5 * time.Minute},
		secret: []byte("test-ticket-secret"),
	}
	now := func() time.Time { return env.clock }
	env.manual = &payments.ManualAdapter{
		Account:  payments.BankAccount{BankName: "Test Bank", AccountName: "Busbook", AccountNumber: "0123456789"},
		Receipts: env.store,
	}
	registry := payments.NewRegistry(env.rail, env.manual)

	env.inv = InventoryService{Trips: env.store, Holds: env.store, Now: now}
	env.loyalty = LoyaltyService{
		Ledger:     env.store,
		EarnRate:   decimal.RequireFromString("0.01"),
		PointValue: decimal.NewFromInt(1),
		Now:        now,
	}
	env.tickets = TicketService{Secret: env.secret, Policy: env.policy, Bookings: env.store, Trips: env.store, Now: now}
	env.booking = BookingService{
		Trips:     env.store,
		Bookings:  env.store,
		Inventory: env.inv,
		Loyalty:   env.loyalty,
		Payments:  registry,
		MaxSeats:  6,
		Now:       now,
	}
	env.recon = ReconcileService{
		Bookings:  env.store,
		Payments:  registry,
		Inventory: env.inv,
		Loyalty:   env.loyalty,
		Tickets:   env.tickets,
		Notifier:  env.notes,
		Currency:  "ngn",
		Now:       now,
	}
	env.receipt = ReceiptService{Receipts: env.store, Bookings: env.store, Reconcile: env.recon, Now: now}
	env.sweep = SweepService{
		Bookings:       env.store,
		Trips:          env.store,
		Booking:        env.booking,
		Reconcile:      env.recon,
		Notifier:       env.notes,
		PendingTimeout: 30 * time.Minute,
		ReminderLead:   3 * time.Hour,
		Now:            now,
	}
	env.docs = DocsService{Bookings: env.store, Trips: env.store, Currency: "ngn"}

	env.addTrip(t, testTripID, 4, 10000)
	return env
}

func (e *testEnv) addTrip(t *testing.T, id string, seats int, price int64) models.Trip {
	t.Helper()
	layout := make([]string, 0, seats)
	for i := 1; i <= seats; i++ {
		layout = append(layout, fmt.Sprintf("A%d", i))
	}
	trip := models.Trip{
		ID:          id,
		RouteFrom:   "Lagos",
		RouteTo:     "Abuja",
		TotalSeats:  seats,
		SeatLayout:  layout,
		DepartureAt: testNow.Add(48 * time.Hour),
		ArrivalAt:   testNow.Add(58 * time.Hour),
		BasePrice:   price,
		Active:      true,
	}
	require.NoError(t, e.store.UpsertTrip(context.Background(), trip))
	return trip
}

func (e *testEnv) request(seats ...string) CreateBookingRequest {
	return CreateBookingRequest{
		TripID: testTripID,
		Passenger: models.PassengerInfo{
			UserID: testUserID,
			Name:   "Ada Obi",
			Email:  "ada@example.com",
			Phone:  "+2348000000000",
		},
		Seats:    seats,
		Provider: "stripe",
	}
}

func (e *testEnv) book(t *testing.T, seats ...string) models.Booking {
	t.Helper()
	b, err := e.booking.CreateBooking(context.Background(), e.request(seats...))
	require.NoError(t, err)
	return b
}

// pay opens a payment attempt and returns its reference.
func (e *testEnv) pay(t *testing.T, b models.Booking) string {
	t.Helper()
	init, err := e.booking.InitializePayment(context.Background(), b.Reference, "")
	require.NoError(t, err)
	return init.Reference
}

func (e *testEnv) reload(t *testing.T, b models.Booking) models.Booking {
	t.Helper()
	out, err := e.store.GetBookingByID(context.Background(), b.ID)
	require.NoError(t, err)
	return out
}

func (e *testEnv) available(t *testing.T) int {
	t.Helper()
	snap, err := e.inv.Snapshot(context.Background(), testTripID)
	require.NoError(t, err)
	return snap.Available
}

// ledgerCount counts ledger entries of typ for the test user.
func (e *testEnv) ledgerCount(t *testing.T, typ domain.LoyaltyTxType) int {
	t.Helper()
	hist, err := e.store.LoyaltyHistory(context.Background(), testUserID, 0)
	require.NoError(t, err)
	n := 0
	for _, h := range hist {
		if h.Type == typ {
			n++
		}
	}
	return n
}
