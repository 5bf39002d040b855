// Package analytics maintains the analytics aggregate: per-type event
// counters and a running revenue total.
//
// The aggregate is intentionally not idempotent: a redelivered
// OrderCreated double-counts, and updates/cancellations do not adjust
// revenue (that would require tracking per-order totals over time). This
// is a documented simplification, not a bug to be masked.
package analytics

import (
	"context"
	"fmt"
	"sync"

	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// Snapshot is a point-in-time copy of the aggregate.
type Snapshot struct {
	Created   int64
	Updated   int64
	Cancelled int64
	Revenue   float64
}

// Handler accumulates the aggregate from observed envelopes.
type Handler struct {
	logger *logging.Logger

	mu        sync.RWMutex
	created   int64
	updated   int64
	cancelled int64
	revenue   float64
}

// NewHandler creates the analytics projection handler.
func NewHandler(logger *logging.Logger) *Handler {
	return &Handler{
		logger: logger.With(logging.Consumer("analytics")),
	}
}

// Apply dispatches on the envelope detail-type. Counting never fails, so
// the only non-nil returns are detail decode errors.
func (h *Handler) Apply(_ context.Context, env *event.Envelope) error {
	switch env.DetailType {
	case event.TypeOrderCreated:
		d, err := env.CreatedDetail()
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.created++
		h.revenue += d.Total
		h.mu.Unlock()
		EventsAnalyzed.WithLabelValues(string(event.TypeOrderCreated)).Inc()
		// Counters reject negative increments with a panic, so only the
		// in-memory sum absorbs a negative total.
		if d.Total >= 0 {
			RevenueTotal.Add(d.Total)
		} else {
			h.logger.Warn("negative order total, revenue metric not adjusted",
				logging.OrderID(d.OrderID), "total", d.Total)
		}

	case event.TypeOrderUpdated:
		h.mu.Lock()
		h.updated++
		h.mu.Unlock()
		EventsAnalyzed.WithLabelValues(string(event.TypeOrderUpdated)).Inc()

	case event.TypeOrderCancelled:
		h.mu.Lock()
		h.cancelled++
		h.mu.Unlock()
		EventsAnalyzed.WithLabelValues(string(event.TypeOrderCancelled)).Inc()

	default:
		h.logger.Warn("unknown event type, skipping",
			logging.EventType(string(env.DetailType)))
		return nil
	}

	h.logStats()
	return nil
}

// Snapshot returns a copy of the current aggregate.
func (h *Handler) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		Created:   h.created,
		Updated:   h.updated,
		Cancelled: h.cancelled,
		Revenue:   h.revenue,
	}
}

func (h *Handler) logStats() {
	s := h.Snapshot()
	h.logger.Info("analytics metrics",
		"orders_created", s.Created,
		"orders_updated", s.Updated,
		"orders_cancelled", s.Cancelled,
		"total_revenue", fmt.Sprintf("%.2f", s.Revenue),
	)
}
