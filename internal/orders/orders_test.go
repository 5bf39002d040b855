package orders

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

type capturePublisher struct {
	bodies [][]byte
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.bodies = append(p.bodies, body)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func TestCreateOrderPublishesSnapshot(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(pub, testLogger())

	orderID, err := svc.CreateOrder(context.Background(), OrderData{
		CustomerID: "cust123",
		Items:      []event.Item{{ProductID: "prod1", Quantity: 2, Price: 19.99}},
		Total:      39.98,
	})
	require.NoError(t, err)
	require.NotEmpty(t, orderID)
	require.Len(t, pub.bodies, 1)

	env, err := event.Decode(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, event.TypeOrderCreated, env.DetailType)
	assert.Equal(t, event.Source, env.Source)
	assert.False(t, env.Time.IsZero())

	d, err := env.CreatedDetail()
	require.NoError(t, err)
	assert.Equal(t, orderID, d.OrderID)
	assert.Equal(t, event.StatusCreated, d.Status)
	assert.Equal(t, "cust123", d.CustomerID)
	assert.Equal(t, 39.98, d.Total)
	require.Len(t, d.Items, 1)
}

func TestCreateOrderAssignsUniqueIDs(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(pub, testLogger())
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, OrderData{CustomerID: "c"})
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, OrderData{CustomerID: "c"})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestUpdateOrderCarriesOnlyChanges(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(pub, testLogger())

	newTotal := 89.96
	require.NoError(t, svc.UpdateOrder(context.Background(), "ord-1", event.Changes{
		Total: &newTotal,
	}))
	require.Len(t, pub.bodies, 1)

	env, err := event.Decode(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, event.TypeOrderUpdated, env.DetailType)

	d, err := env.UpdatedDetail()
	require.NoError(t, err)
	assert.Equal(t, "ord-1", d.OrderID)
	assert.Equal(t, event.StatusUpdated, d.Status)
	assert.Nil(t, d.Changes.Items)
	require.NotNil(t, d.Changes.Total)
	assert.Equal(t, 89.96, *d.Changes.Total)
}

func TestCancelOrderCarriesReason(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewService(pub, testLogger())

	require.NoError(t, svc.CancelOrder(context.Background(), "ord-1", "Customer requested cancellation"))
	require.Len(t, pub.bodies, 1)

	env, err := event.Decode(pub.bodies[0])
	require.NoError(t, err)
	d, err := env.CancelledDetail()
	require.NoError(t, err)
	assert.Equal(t, "ord-1", d.OrderID)
	assert.Equal(t, event.StatusCancelled, d.Status)
	assert.Equal(t, "Customer requested cancellation", d.Reason)
}

func TestPublishFailurePropagates(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker unreachable")}
	svc := NewService(pub, testLogger())

	_, err := svc.CreateOrder(context.Background(), OrderData{CustomerID: "c"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "publish OrderCreated")

	assert.Error(t, svc.UpdateOrder(context.Background(), "ord-1", event.Changes{}))
	assert.Error(t, svc.CancelOrder(context.Background(), "ord-1", ""))
}
