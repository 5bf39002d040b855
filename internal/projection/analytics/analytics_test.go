package analytics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

func newTestHandler() *Handler {
	return NewHandler(logging.New(slog.LevelError, "text"))
}

func createdEnvelope(t *testing.T, orderID string, total float64) *event.Envelope {
	t.Helper()
	env, err := event.New(event.TypeOrderCreated, event.CreatedDetail{
		OrderID:   orderID,
		Status:    event.StatusCreated,
		Timestamp: time.Now().UTC(),
		Total:     total,
	})
	require.NoError(t, err)
	return env
}

func TestRevenueAccounting(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	// A duplicate Created double-counts: the aggregate is deliberately
	// not idempotent, and that behavior is pinned here.
	require.NoError(t, h.Apply(ctx, createdEnvelope(t, "ord-1", 69.97)))
	require.NoError(t, h.Apply(ctx, createdEnvelope(t, "ord-2", 30.00)))

	s := h.Snapshot()
	assert.Equal(t, int64(2), s.Created)
	assert.InDelta(t, 99.97, s.Revenue, 0.001)
}

func TestCountersByType(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	updated, err := event.New(event.TypeOrderUpdated, event.UpdatedDetail{OrderID: "ord-1"})
	require.NoError(t, err)
	cancelled, err := event.New(event.TypeOrderCancelled, event.CancelledDetail{OrderID: "ord-1"})
	require.NoError(t, err)

	require.NoError(t, h.Apply(ctx, createdEnvelope(t, "ord-1", 10)))
	require.NoError(t, h.Apply(ctx, updated))
	require.NoError(t, h.Apply(ctx, cancelled))

	s := h.Snapshot()
	assert.Equal(t, int64(1), s.Created)
	assert.Equal(t, int64(1), s.Updated)
	assert.Equal(t, int64(1), s.Cancelled)

	// Updates and cancellations never adjust revenue.
	assert.InDelta(t, 10.0, s.Revenue, 0.001)
}

func TestNegativeTotalDoesNotPanic(t *testing.T) {
	h := newTestHandler()
	ctx := context.Background()

	require.NoError(t, h.Apply(ctx, createdEnvelope(t, "ord-1", 10.00)))

	// A refund-shaped order must not take down the consumer; the
	// in-memory sum absorbs it even though the counter cannot.
	require.NotPanics(t, func() {
		require.NoError(t, h.Apply(ctx, createdEnvelope(t, "ord-2", -5.00)))
	})

	s := h.Snapshot()
	assert.Equal(t, int64(2), s.Created)
	assert.InDelta(t, 5.00, s.Revenue, 0.001)
}

func TestUnknownTypeIgnored(t *testing.T) {
	h := newTestHandler()

	env := &event.Envelope{
		DetailType: "OrderShipped",
		Source:     event.Source,
		Detail:     []byte(`{"orderId":"ord-1"}`),
	}
	require.NoError(t, h.Apply(context.Background(), env))

	s := h.Snapshot()
	assert.Equal(t, Snapshot{}, s)
}
