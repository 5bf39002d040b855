// Package notify dispatches customer notifications for order lifecycle
// events. Outbound delivery is an external capability behind the Notifier
// interface; the handler itself does not deduplicate, so redelivered
// envelopes renotify unless the configured notifier does (see Deduper).
package notify

import (
	"context"

	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// Sentinels for payloads missing optional fields.
const (
	UnknownCustomer = "unknown"
	NoReason        = "No reason provided"
)

// Notifier delivers order notifications to customers.
type Notifier interface {
	OrderConfirmation(ctx context.Context, orderID, customerID string) error
	OrderUpdate(ctx context.Context, orderID, customerID string) error
	OrderCancellation(ctx context.Context, orderID, customerID, reason string) error
}

// Handler applies lifecycle envelopes by invoking the notifier.
type Handler struct {
	notifier Notifier
	logger   *logging.Logger
}

// NewHandler creates the notification dispatch handler.
func NewHandler(notifier Notifier, logger *logging.Logger) *Handler {
	return &Handler{
		notifier: notifier,
		logger:   logger.With(logging.Consumer("notifications")),
	}
}

// Apply dispatches on the envelope detail-type. Notifier failures are
// transient (the provider may recover), so they propagate and the message
// is redelivered.
func (h *Handler) Apply(ctx context.Context, env *event.Envelope) error {
	switch env.DetailType {
	case event.TypeOrderCreated:
		d, err := env.CreatedDetail()
		if err != nil {
			return err
		}
		return h.notifier.OrderConfirmation(ctx, d.OrderID, customerOrUnknown(d.CustomerID))

	case event.TypeOrderUpdated:
		d, err := env.UpdatedDetail()
		if err != nil {
			return err
		}
		// Updated payloads carry no customer id; the sentinel keeps the
		// notification log complete without fabricating one.
		return h.notifier.OrderUpdate(ctx, d.OrderID, UnknownCustomer)

	case event.TypeOrderCancelled:
		d, err := env.CancelledDetail()
		if err != nil {
			return err
		}
		reason := d.Reason
		if reason == "" {
			reason = NoReason
		}
		return h.notifier.OrderCancellation(ctx, d.OrderID, UnknownCustomer, reason)

	default:
		h.logger.Warn("unknown event type, skipping",
			logging.EventType(string(env.DetailType)))
		return nil
	}
}

func customerOrUnknown(customerID string) string {
	if customerID == "" {
		return UnknownCustomer
	}
	return customerID
}
