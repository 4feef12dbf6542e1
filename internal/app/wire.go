package app

import (
	"busbook/internal/cache"
	"busbook/internal/config"
	"busbook/internal/http/handlers"
	"busbook/internal/notify"
	"busbook/internal/payments"
	"busbook/internal/repositories"
	"busbook/internal/services"
	"busbook/internal/utils"

	"github.com/shopspring/decimal"
)

// Services is the engine, wired over one Store.
type Services struct {
	Inventory services.InventoryService
	Booking   services.BookingService
	Reconcile services.ReconcileService
	Loyalty   services.LoyaltyService
	Tickets   services.TicketService
	Receipts  services.ReceiptService
	Sweep     services.SweepService
	Docs      services.DocsService
}

// NewRegistry registers every rail whose credentials are configured. The
// manual bank-transfer rail is always available.
func NewRegistry(env config.Env, receipts payments.ReceiptLookup) *payments.Registry {
	adapters := []payments.Adapter{
		&payments.ManualAdapter{
			Account: payments.BankAccount{
				BankName:      env.BankName,
				AccountName:   env.BankAccountName,
				AccountNumber: env.BankAccountNumber,
			},
			Receipts: receipts,
		},
	}
	if env.StripeSecretKey != "" {
		adapters = append(adapters, payments.NewStripeAdapter(payments.StripeConfig{
			SecretKey:       env.StripeSecretKey,
			WebhookSecret:   env.StripeWebhookKey,
			Currency:        env.Currency,
			MinorUnitFactor: env.MinorUnitFactor,
			Timeout:         env.PaymentTimeout,
			APIURL:          env.StripeAPIURL,
		}))
	}
	if env.PaystackSecretKey != "" {
		adapters = append(adapters, payments.NewPaystackAdapter(payments.PaystackConfig{
			SecretKey:       env.PaystackSecretKey,
			BaseURL:         env.PaystackBaseURL,
			CallbackURL:     env.PaystackCallback,
			MinorUnitFactor: env.MinorUnitFactor,
			Timeout:         env.PaymentTimeout,
		}))
	}
	return payments.NewRegistry(adapters...)
}

// Wire builds the services. now may be nil for the wall clock.
func Wire(env config.Env, store repositories.Store, registry *payments.Registry, snapshots cache.SnapshotCache, notifier notify.Notifier, now utils.Clock) (Services, error) {
	earnRate, err := decimal.NewFromString(env.LoyaltyEarnRate)
	if err != nil {
		return Services{}, err
	}
	pointValue, err := decimal.NewFromString(env.LoyaltyPointValue)
	if err != nil {
		return Services{}, err
	}

	inventory := services.InventoryService{Trips: store, Holds: store, Cache: snapshots, Now: now}
	loyalty := services.LoyaltyService{Ledger: store, EarnRate: earnRate, PointValue: pointValue, Now: now}
	tickets := services.TicketService{
		Secret:   []byte(env.TicketSecret),
		Policy:   services.BoardingPolicy{Window: env.BoardingWindow, Grace: env.BoardingGrace},
		Bookings: store,
		Trips:    store,
		Now:      now,
	}
	booking := services.BookingService{
		Trips:     store,
		Bookings:  store,
		Inventory: inventory,
		Loyalty:   loyalty,
		Payments:  registry,
		MaxSeats:  env.MaxSeatsPerBooking,
		Now:       now,
	}
	reconcile := services.ReconcileService{
		Bookings:  store,
		Payments:  registry,
		Inventory: inventory,
		Loyalty:   loyalty,
		Tickets:   tickets,
		Notifier:  notifier,
		Currency:  env.Currency,
		Now:       now,
	}
	return Services{
		Inventory: inventory,
		Booking:   booking,
		Reconcile: reconcile,
		Loyalty:   loyalty,
		Tickets:   tickets,
		Receipts: services.ReceiptService{
			Receipts:  store,
			Bookings:  store,
			Reconcile: reconcile,
			MaxBytes:  env.ReceiptMaxBytes,
			Now:       now,
		},
		Sweep: services.SweepService{
			Bookings:       store,
			Trips:          store,
			Booking:        booking,
			Reconcile:      reconcile,
			Notifier:       notifier,
			PendingTimeout: env.PendingTimeout,
			ReminderLead:   env.ReminderLead,
			Now:            now,
		},
		Docs: services.DocsService{Bookings: store, Trips: store, Currency: env.Currency},
	}, nil
}

// NewHandler exposes the services over HTTP.
func NewHandler(env config.Env, svc Services, store repositories.TripStore) *handlers.Handler {
	return &handlers.Handler{
		Bookings:  svc.Booking,
		Inventory: svc.Inventory,
		Reconcile: svc.Reconcile,
		Receipts:  svc.Receipts,
		Loyalty:   svc.Loyalty,
		Tickets:   svc.Tickets,
		Docs:      svc.Docs,
		Trips:     store,
		Auth: handlers.AuthConfig{
			Secret:   []byte(env.JWTSecret),
			Accounts: env.StaffAccounts(),
		},
	}
}
