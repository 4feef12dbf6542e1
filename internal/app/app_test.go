package app

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"busbook/internal/config"
	"busbook/internal/domain"
	"busbook/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testEnv() config.Env {
	env := config.DefaultEnv()
	env.Storage = "memory"
	env.BankName = "First Bank"
	env.BankAccountName = "Busbook Ltd"
	env.BankAccountNumber = "3012345678"
	env.JWTSecret = "test-jwt-secret"
	env.TicketSecret = "test-ticket-secret"
	return env
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testEnv())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func staffToken(t *testing.T, a *App, role string) string {
	t.Helper()
	tok, err := middleware.IssueStaffToken([]byte(a.Env.JWTSecret), "ops-"+role, role, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func travelerToken(t *testing.T, a *App, userID string) string {
	t.Helper()
	tok, err := middleware.IssueTravelerToken([]byte(a.Env.JWTSecret), userID, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func call(a *App, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestNewRegistersConfiguredRails(t *testing.T) {
	env := testEnv()
	reg := NewRegistry(env, nil)
	assert.Equal(t, []domain.Provider{domain.ProviderManual}, reg.Providers())

	env.StripeSecretKey = "sk_test_123"
	env.PaystackSecretKey = "sk_test_456"
	reg = NewRegistry(env, nil)
	assert.ElementsMatch(t,
		[]domain.Provider{domain.ProviderManual, domain.ProviderStripe, domain.ProviderPaystack},
		reg.Providers())
}

func TestWireRejectsBadLoyaltyRates(t *testing.T) {
	env := testEnv()
	env.LoyaltyEarnRate = "one percent"
	_, err := New(context.Background(), env)
	assert.Error(t, err)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	env := testEnv()
	env.SweepSchedule = "every now and then"
	_, err := New(context.Background(), env)
	assert.Error(t, err)
}

func TestBankTransferJourney(t *testing.T) {
	a := newTestApp(t)
	admin := staffToken(t, a, domain.RoleAdmin)

	w := call(a, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	trip := map[string]any{
		"id":          "lag-ibd-0700",
		"routeFrom":   "Lagos",
		"routeTo":     "Ibadan",
		"totalSeats":  3,
		"seatLayout":  []string{"1A", "1B", "1C"},
		"departureAt": time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"basePrice":   25000,
	}
	w = call(a, http.MethodPost, "/api/admin/trips", "", trip)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = call(a, http.MethodPost, "/api/admin/trips", staffToken(t, a, domain.RoleScanner), trip)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(a, http.MethodPost, "/api/admin/trips", admin, trip)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ada := travelerToken(t, a, "traveler-1")
	adaBooking := map[string]any{
		"tripId":    "lag-ibd-0700",
		"passenger": map[string]any{"userId": "traveler-1", "name": "Ada Obi", "email": "ada@example.com"},
		"seats":     []string{"1b"},
		"provider":  "bank_transfer",
	}
	w = call(a, http.MethodPost, "/api/bookings", "", adaBooking)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a loyalty account needs its owner's token")
	w = call(a, http.MethodPost, "/api/bookings", travelerToken(t, a, "traveler-2"), adaBooking)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(a, http.MethodPost, "/api/bookings", ada, adaBooking)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var booking struct {
		Reference   string   `json:"reference"`
		Seats       []string `json:"seats"`
		TotalAmount int64    `json:"totalAmount"`
		Status      string   `json:"status"`
	}
	decode(t, w, &booking)
	assert.Equal(t, []string{"1B"}, booking.Seats)
	assert.Equal(t, int64(25000), booking.TotalAmount)
	assert.Equal(t, "PENDING", booking.Status)

	w = call(a, http.MethodPost, "/api/bookings", "", map[string]any{
		"tripId":    "lag-ibd-0700",
		"passenger": map[string]any{"name": "Late Comer", "phone": "+2348030000000"},
		"seats":     []string{"1B", "1C"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(a, http.MethodGet, "/api/trips/lag-ibd-0700/seats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seats struct {
		Snapshot struct {
			Available int      `json:"available"`
			Held      []string `json:"heldSeatNumbers"`
		} `json:"snapshot"`
	}
	decode(t, w, &seats)
	assert.Equal(t, 2, seats.Snapshot.Available)
	assert.Equal(t, []string{"1B"}, seats.Snapshot.Held)

	w = call(a, http.MethodPost, "/api/bookings/"+booking.Reference+"/payments", "", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var init struct {
		Provider     string `json:"provider"`
		Instructions struct {
			AccountNumber string `json:"accountNumber"`
			Amount        int64  `json:"amount"`
		} `json:"instructions"`
	}
	decode(t, w, &init)
	assert.Equal(t, "manual", init.Provider)
	assert.Equal(t, "3012345678", init.Instructions.AccountNumber)
	assert.Equal(t, int64(25000), init.Instructions.Amount)

	receiptID := uploadReceipt(t, a, booking.Reference)

	w = call(a, http.MethodPut, "/api/payment-validations/"+receiptID+"/approve", "", map[string]any{"amount": 25000})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = call(a, http.MethodPut, "/api/payment-validations/"+receiptID+"/approve", admin, map[string]any{"amount": 25000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approved struct {
		Outcome string `json:"outcome"`
		Booking struct {
			Status string `json:"status"`
			Ticket string `json:"ticket"`
		} `json:"booking"`
	}
	decode(t, w, &approved)
	assert.Equal(t, "confirmed", approved.Outcome)
	assert.Equal(t, "CONFIRMED", approved.Booking.Status)
	require.NotEmpty(t, approved.Booking.Ticket)

	w = call(a, http.MethodGet, "/api/bookings/"+booking.Reference+"/ticket", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ticket struct {
		Ticket string `json:"ticket"`
	}
	decode(t, w, &ticket)
	assert.Equal(t, approved.Booking.Ticket, ticket.Ticket)

	w = call(a, http.MethodPost, "/api/tickets/verify", "", map[string]any{"ticket": ticket.Ticket})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = call(a, http.MethodPost, "/api/tickets/verify", staffToken(t, a, domain.RoleScanner), map[string]any{"ticket": ticket.Ticket})
	require.Equal(t, http.StatusOK, w.Code)
	var scan struct {
		Valid bool   `json:"valid"`
		State string `json:"state"`
	}
	decode(t, w, &scan)
	assert.False(t, scan.Valid)
	assert.Equal(t, "too_early", scan.State)

	w = call(a, http.MethodGet, "/api/loyalty/traveler-1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = call(a, http.MethodGet, "/api/loyalty/traveler-1", travelerToken(t, a, "traveler-2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = call(a, http.MethodGet, "/api/loyalty/traveler-1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = call(a, http.MethodGet, "/api/loyalty/traveler-1", ada, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var acct struct {
		Balance int64  `json:"balance"`
		Tier    string `json:"tier"`
	}
	decode(t, w, &acct)
	assert.Equal(t, int64(250), acct.Balance)
	assert.Equal(t, "bronze", acct.Tier)

	w = call(a, http.MethodGet, "/api/bookings/"+booking.Reference+"/ticket.pdf", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = call(a, http.MethodPost, "/api/bookings/"+booking.Reference+"/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func uploadReceipt(t *testing.T, a *App, ref string) string {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "transfer.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/bookings/"+ref+"/receipts", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var receipt struct {
		ID       string `json:"id"`
		MimeType string `json:"mimeType"`
	}
	decode(t, w, &receipt)
	assert.Equal(t, "application/pdf", receipt.MimeType)
	return receipt.ID
}

func TestUnknownRoute(t *testing.T) {
	a := newTestApp(t)
	w := call(a, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCloseWithoutRunReturnsPromptly(t *testing.T) {
	a, err := New(context.Background(), testEnv())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a router that never ran")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	env := testEnv()
	env.AppAddr = "127.0.0.1:0"
	a, err := New(context.Background(), env)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()
	<-a.notifier.Running()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}

	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked after Run")
	}
}
