package handlers

import (
	"context"

	"busbook/internal/config"
	"busbook/internal/repositories"
	"busbook/internal/services"
)

// Handler serves the HTTP API on top of the engine services.
type Handler struct {
	Bookings  services.BookingService
	Inventory services.InventoryService
	Reconcile services.ReconcileService
	Receipts  services.ReceiptService
	Loyalty   services.LoyaltyService
	Tickets   services.TicketService
	Docs      services.DocsService
	Trips     repositories.TripStore
	Auth      AuthConfig
	// Ping checks the storage backend; nil means always healthy.
	Ping func(ctx context.Context) error
}

type AuthConfig struct {
	Secret   []byte
	Accounts map[string]config.StaffAccount
}
