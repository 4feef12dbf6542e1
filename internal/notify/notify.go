// Package notify publishes booking lifecycle events on a Watermill topic.
// Channel choice (SMS, e-mail, push) belongs to subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"busbook/internal/metrics"
	"busbook/internal/utils"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

const Topic = "booking.notifications"

type EventType string

const (
	BookingConfirmed  EventType = "booking_confirmed"
	PaymentReceived   EventType = "payment_received"
	DepartureReminder EventType = "departure_reminder"
)

// Event is the JSON body of every notification message.
type Event struct {
	Type       EventType         `json:"type"`
	BookingRef string            `json:"bookingRef"`
	Recipient  Recipient         `json:"recipient"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

type Recipient struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Notifier is what the engine depends on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Dispatcher publishes events; delivery failures never fail the caller's
// state transition.
type Dispatcher struct {
	publisher message.Publisher
}

func NewDispatcher(publisher message.Publisher) *Dispatcher {
	return &Dispatcher{publisher: publisher}
}

func (d *Dispatcher) Notify(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("event", string(ev.Type))
	if rid := utils.RequestIDFrom(ctx); rid != "" {
		msg.Metadata.Set("request_id", rid)
	}
	if err := d.publisher.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.NotificationsPublished.WithLabelValues(string(ev.Type)).Inc()
	return nil
}

// NewPubSub is the in-process transport used when no broker is configured.
func NewPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
}

// Sink receives decoded events on the subscriber side.
type Sink func(ctx context.Context, ev Event) error

const routerCloseTimeout = 5 * time.Second

// NewRouter consumes the notification topic and hands each event to sink.
func NewRouter(sub message.Subscriber, sink Sink, logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}
	router.AddNoPublisherHandler("notifications.deliver", Topic, sub, func(msg *message.Message) error {
		var ev Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			// poison message, drop it
			utils.Logger().Error("malformed notification", zap.String("message_uuid", msg.UUID), zap.Error(err))
			return nil
		}
		return sink(msg.Context(), ev)
	})
	return router, nil
}

// LogSink writes events to the log; stands in for an SMS/e-mail gateway.
func LogSink(_ context.Context, ev Event) error {
	utils.Logger().Info("notification",
		zap.String("event", string(ev.Type)),
		zap.String("booking_ref", ev.BookingRef),
		zap.String("recipient", ev.Recipient.Name),
		zap.Any("data", ev.Data),
	)
	return nil
}
