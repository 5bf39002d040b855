// Package orderstore maintains the order-store projection: one record per
// order, keyed by order id, built solely from observed envelopes.
package orderstore

import (
	"context"
	"errors"
	"time"

	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// ErrNotFound reports a lookup for an order id with no record.
var ErrNotFound = errors.New("orderstore: order not found")

// Record is this consumer's view of one order.
type Record struct {
	OrderID    string       `json:"orderId"`
	Status     string       `json:"status"`
	CustomerID string       `json:"customerId"`
	Items      []event.Item `json:"items"`
	Total      float64      `json:"total"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Store persists the projection. Implementations do not need to be safe
// for concurrent writers: the poll loop applies one message at a time.
type Store interface {
	// Get returns the record for the order id, or ErrNotFound.
	Get(ctx context.Context, orderID string) (*Record, error)

	// Put inserts or replaces the record keyed by its order id.
	Put(ctx context.Context, rec *Record) error

	// Delete removes the record for the order id, if present.
	Delete(ctx context.Context, orderID string) error

	// List returns all records.
	List(ctx context.Context) ([]*Record, error)
}

// Handler applies lifecycle envelopes to the store.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates the order-store projection handler.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With(logging.Consumer("order-store")),
	}
}

// Apply dispatches on the envelope detail-type. It returns an error only
// for store failures where redelivery can help; logically-dropped
// envelopes (out-of-order, unknown type) return nil so they are acked.
func (h *Handler) Apply(ctx context.Context, env *event.Envelope) error {
	switch env.DetailType {
	case event.TypeOrderCreated:
		return h.applyCreated(ctx, env)
	case event.TypeOrderUpdated:
		return h.applyUpdated(ctx, env)
	case event.TypeOrderCancelled:
		return h.applyCancelled(ctx, env)
	default:
		h.logger.Warn("unknown event type, skipping",
			logging.EventType(string(env.DetailType)))
		return nil
	}
}

func (h *Handler) applyCreated(ctx context.Context, env *event.Envelope) error {
	d, err := env.CreatedDetail()
	if err != nil {
		return err
	}

	// The transport offers no uniqueness guarantee, so a duplicate Created
	// is expected: overwrite and warn rather than fail.
	if _, err := h.store.Get(ctx, d.OrderID); err == nil {
		h.logger.Warn("order already exists, overwriting", logging.OrderID(d.OrderID))
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	rec := &Record{
		OrderID:    d.OrderID,
		Status:     d.Status,
		CustomerID: d.CustomerID,
		Items:      d.Items,
		Total:      d.Total,
		CreatedAt:  d.Timestamp,
		UpdatedAt:  d.Timestamp,
	}
	if err := h.store.Put(ctx, rec); err != nil {
		return err
	}
	h.logger.Info("order created in store", logging.OrderID(d.OrderID))
	return nil
}

func (h *Handler) applyUpdated(ctx context.Context, env *event.Envelope) error {
	d, err := env.UpdatedDetail()
	if err != nil {
		return err
	}

	rec, err := h.store.Get(ctx, d.OrderID)
	if errors.Is(err, ErrNotFound) {
		// Out-of-order arrival: the Created event has not been applied
		// yet. A partial changes object cannot fabricate a record, so
		// drop it; the ack prevents an infinite redelivery of a message
		// that can never succeed on its own.
		h.logger.Warn("order not found for update, dropping", logging.OrderID(d.OrderID))
		return nil
	}
	if err != nil {
		return err
	}

	if d.Changes.Items != nil {
		rec.Items = d.Changes.Items
	}
	if d.Changes.Total != nil {
		rec.Total = *d.Changes.Total
	}
	rec.Status = event.StatusUpdated
	rec.UpdatedAt = d.Timestamp

	if err := h.store.Put(ctx, rec); err != nil {
		return err
	}
	h.logger.Info("order updated in store", logging.OrderID(d.OrderID))
	return nil
}

func (h *Handler) applyCancelled(ctx context.Context, env *event.Envelope) error {
	d, err := env.CancelledDetail()
	if err != nil {
		return err
	}

	rec, err := h.store.Get(ctx, d.OrderID)
	if errors.Is(err, ErrNotFound) {
		h.logger.Warn("order not found for cancellation, dropping", logging.OrderID(d.OrderID))
		return nil
	}
	if err != nil {
		return err
	}

	rec.Status = event.StatusCancelled
	rec.UpdatedAt = d.Timestamp

	if err := h.store.Put(ctx, rec); err != nil {
		return err
	}
	h.logger.Info("order cancelled in store", logging.OrderID(d.OrderID))
	return nil
}
