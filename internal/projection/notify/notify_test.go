package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func TestConfirmationCarriesCustomer(t *testing.T) {
	recorder := NewRecorder()
	h := NewHandler(recorder, testLogger())

	env, err := event.New(event.TypeOrderCreated, event.CreatedDetail{
		OrderID:    "ord-1",
		Status:     event.StatusCreated,
		Timestamp:  time.Now().UTC(),
		CustomerID: "c1",
	})
	require.NoError(t, err)
	require.NoError(t, h.Apply(context.Background(), env))

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Kind: KindConfirmation, OrderID: "ord-1", CustomerID: "c1"}, entries[0])
}

func TestMissingCustomerDefaultsToUnknown(t *testing.T) {
	recorder := NewRecorder()
	h := NewHandler(recorder, testLogger())

	env, err := event.New(event.TypeOrderCreated, event.CreatedDetail{
		OrderID: "ord-1",
		Status:  event.StatusCreated,
	})
	require.NoError(t, err)
	require.NoError(t, h.Apply(context.Background(), env))

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, UnknownCustomer, entries[0].CustomerID)
}

func TestCancellationReasonDefault(t *testing.T) {
	tests := []struct {
		name       string
		reason     string
		wantReason string
	}{
		{name: "explicit reason", reason: "customer request", wantReason: "customer request"},
		{name: "missing reason", reason: "", wantReason: NoReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := NewRecorder()
			h := NewHandler(recorder, testLogger())

			env, err := event.New(event.TypeOrderCancelled, event.CancelledDetail{
				OrderID: "ord-1",
				Status:  event.StatusCancelled,
				Reason:  tt.reason,
			})
			require.NoError(t, err)
			require.NoError(t, h.Apply(context.Background(), env))

			entries := recorder.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, KindCancellation, entries[0].Kind)
			assert.Equal(t, tt.wantReason, entries[0].Reason)
		})
	}
}

func TestUnknownTypeSkipped(t *testing.T) {
	recorder := NewRecorder()
	h := NewHandler(recorder, testLogger())

	env := &event.Envelope{
		DetailType: "OrderShipped",
		Source:     event.Source,
		Detail:     []byte(`{"orderId":"ord-1"}`),
	}
	require.NoError(t, h.Apply(context.Background(), env))
	assert.Empty(t, recorder.Entries())
}

type failingNotifier struct{}

func (failingNotifier) OrderConfirmation(context.Context, string, string) error {
	return errors.New("provider down")
}
func (failingNotifier) OrderUpdate(context.Context, string, string) error {
	return errors.New("provider down")
}
func (failingNotifier) OrderCancellation(context.Context, string, string, string) error {
	return errors.New("provider down")
}

func TestNotifierFailurePropagates(t *testing.T) {
	h := NewHandler(failingNotifier{}, testLogger())

	env, err := event.New(event.TypeOrderCreated, event.CreatedDetail{OrderID: "ord-1"})
	require.NoError(t, err)

	// Transient: the loop must leave the message for redelivery.
	assert.Error(t, h.Apply(context.Background(), env))
}

func TestMultiStopsAtFirstFailure(t *testing.T) {
	recorder := NewRecorder()
	m := Multi{failingNotifier{}, recorder}

	assert.Error(t, m.OrderConfirmation(context.Background(), "ord-1", "c1"))
	assert.Empty(t, recorder.Entries())
}
