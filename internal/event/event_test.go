package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireFixture is the canonical envelope shape as it appears on the bus.
const wireFixture = `{
	"detail-type": "OrderCreated",
	"source": "com.ordermesh.orders",
	"detail": {
		"orderId": "ord-1",
		"status": "CREATED",
		"timestamp": "2026-03-01T10:00:00Z",
		"customerId": "cust123",
		"items": [
			{"productId": "prod1", "quantity": 2, "price": 19.99},
			{"productId": "prod2", "quantity": 1, "price": 29.99}
		],
		"total": 69.97
	},
	"time": "2026-03-01T10:00:00Z"
}`

func TestDecodeWireFormat(t *testing.T) {
	env, err := Decode([]byte(wireFixture))
	require.NoError(t, err)

	assert.Equal(t, TypeOrderCreated, env.DetailType)
	assert.Equal(t, Source, env.Source)
	assert.Equal(t, "ord-1", env.OrderID())

	d, err := env.CreatedDetail()
	require.NoError(t, err)
	assert.Equal(t, "cust123", d.CustomerID)
	assert.Equal(t, StatusCreated, d.Status)
	assert.Len(t, d.Items, 2)
	assert.Equal(t, 69.97, d.Total)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), d.Timestamp)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"detail-type": `))
	assert.Error(t, err)
}

func TestNewAssignsSourceAndTime(t *testing.T) {
	env, err := New(TypeOrderCancelled, CancelledDetail{
		OrderID: "ord-2",
		Status:  StatusCancelled,
		Reason:  "customer request",
	})
	require.NoError(t, err)

	assert.Equal(t, Source, env.Source)
	assert.WithinDuration(t, time.Now().UTC(), env.Time, time.Minute)
	assert.Equal(t, "ord-2", env.OrderID())

	d, err := env.CancelledDetail()
	require.NoError(t, err)
	assert.Equal(t, "customer request", d.Reason)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	env, err := New(TypeOrderUpdated, UpdatedDetail{
		OrderID: "ord-3",
		Status:  StatusUpdated,
		Changes: Changes{Items: []Item{{ProductID: "p", Quantity: 1, Price: 2.5}}},
	})
	require.NoError(t, err)

	body, err := env.Encode()
	require.NoError(t, err)

	// The wire field names are fixed; a rename would strand every consumer.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	for _, field := range []string{"detail-type", "source", "detail", "time"} {
		assert.Contains(t, raw, field)
	}

	got, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, env.DetailType, got.DetailType)
	assert.Equal(t, "ord-3", got.OrderID())
}

func TestChangesDistinguishAbsentTotal(t *testing.T) {
	var withTotal, withoutTotal UpdatedDetail
	require.NoError(t, json.Unmarshal([]byte(`{"orderId":"o","changes":{"total":0}}`), &withTotal))
	require.NoError(t, json.Unmarshal([]byte(`{"orderId":"o","changes":{}}`), &withoutTotal))

	require.NotNil(t, withTotal.Changes.Total)
	assert.Equal(t, 0.0, *withTotal.Changes.Total)
	assert.Nil(t, withoutTotal.Changes.Total)
}

func TestOrderIDMalformedDetail(t *testing.T) {
	env := &Envelope{DetailType: TypeOrderCreated, Detail: []byte(`"not an object"`)}
	assert.Equal(t, "", env.OrderID())
}
