package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SeatReservations counts reservation attempts by result (ok, conflict, error).
	SeatReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbook",
			Name:      "seat_reservations_total",
			Help:      "Seat reservation attempts by result",
		},
		[]string{"result"},
	)

	// Reconciliations counts applied verifications by provider and outcome.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbook",
			Name:      "reconciliations_total",
			Help:      "Payment verifications folded into bookings",
		},
		[]string{"provider", "outcome"},
	)

	GatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbook",
			Name:      "gateway_errors_total",
			Help:      "Failed calls to payment gateways",
		},
		[]string{"provider", "op"},
	)

	LoyaltyPoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbook",
			Name:      "loyalty_points_total",
			Help:      "Loyalty points appended to the ledger by type",
		},
		[]string{"type"},
	)

	TicketScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbook",
			Name:      "ticket_scans_total",
			Help:      "Ticket verifications by resulting state",
		},
		[]string{"state"},
	)

	SweptBookings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "busbook",
		Name:      "swept_bookings_total",
		Help:      "Stale pending bookings cancelled by the sweeper",
	})

	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "busbook",
			Name:      "notifications_published_total",
			Help:      "Notification events published",
		},
		[]string{"event"},
	)
)
