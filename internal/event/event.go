// Package event defines the wire-level envelope carried across the order
// event bus, and the per-type detail payloads it wraps.
//
// The envelope is immutable once published: consumers decode it, they never
// mutate or republish it.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies the producer namespace on every published envelope.
const Source = "com.ordermesh.orders"

// Type is the envelope detail-type tag.
type Type string

// Known lifecycle event types.
const (
	TypeOrderCreated   Type = "OrderCreated"
	TypeOrderUpdated   Type = "OrderUpdated"
	TypeOrderCancelled Type = "OrderCancelled"
)

// Order status tags assigned by the publisher.
const (
	StatusCreated   = "CREATED"
	StatusUpdated   = "UPDATED"
	StatusCancelled = "CANCELLED"
)

// Envelope is one order lifecycle transition as it travels on the bus.
//
// Wire format (JSON):
//
//	{"detail-type": "...", "source": "...", "detail": {...}, "time": "RFC3339"}
type Envelope struct {
	DetailType Type            `json:"detail-type"`
	Source     string          `json:"source"`
	Detail     json.RawMessage `json:"detail"`
	Time       time.Time       `json:"time"`
}

// Item is one order line item.
type Item struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// CreatedDetail is the full order snapshot carried by OrderCreated.
type CreatedDetail struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	CustomerID string    `json:"customerId"`
	Items      []Item    `json:"items"`
	Total      float64   `json:"total"`
}

// Changes is the partial update object carried by OrderUpdated. Pointer
// fields distinguish "absent" from zero values so a merge only touches
// what the producer actually changed.
type Changes struct {
	Items []Item   `json:"items,omitempty"`
	Total *float64 `json:"total,omitempty"`
}

// UpdatedDetail is the payload carried by OrderUpdated.
type UpdatedDetail struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Changes   Changes   `json:"changes"`
}

// CancelledDetail is the payload carried by OrderCancelled.
type CancelledDetail struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}

// New builds an envelope around the given detail payload, assigning the
// producer source and a fresh timestamp.
func New(detailType Type, detail any) (*Envelope, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("marshal %s detail: %w", detailType, err)
	}
	return &Envelope{
		DetailType: detailType,
		Source:     Source,
		Detail:     raw,
		Time:       time.Now().UTC(),
	}, nil
}

// Encode serializes the envelope to its wire format.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses an envelope from its wire format.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &e, nil
}

// OrderID extracts the order identifier from the detail payload without
// committing to a per-type shape. Every published envelope carries one;
// an empty string means the payload is malformed.
func (e *Envelope) OrderID() string {
	var probe struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(e.Detail, &probe); err != nil {
		return ""
	}
	return probe.OrderID
}

// CreatedDetail decodes the detail as an OrderCreated snapshot.
func (e *Envelope) CreatedDetail() (*CreatedDetail, error) {
	var d CreatedDetail
	if err := json.Unmarshal(e.Detail, &d); err != nil {
		return nil, fmt.Errorf("decode OrderCreated detail: %w", err)
	}
	return &d, nil
}

// UpdatedDetail decodes the detail as an OrderUpdated payload.
func (e *Envelope) UpdatedDetail() (*UpdatedDetail, error) {
	var d UpdatedDetail
	if err := json.Unmarshal(e.Detail, &d); err != nil {
		return nil, fmt.Errorf("decode OrderUpdated detail: %w", err)
	}
	return &d, nil
}

// CancelledDetail decodes the detail as an OrderCancelled payload.
func (e *Envelope) CancelledDetail() (*CancelledDetail, error) {
	var d CancelledDetail
	if err := json.Unmarshal(e.Detail, &d); err != nil {
		return nil, fmt.Errorf("decode OrderCancelled detail: %w", err)
	}
	return &d, nil
}
