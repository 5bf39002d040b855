// Package bus abstracts the fan-out transport carrying order events.
// It defines the publish and queue-consumption contracts without coupling
// callers to a specific broker implementation.
package bus

import (
	"context"
	"errors"
	"time"
)

// ErrPublishFailed wraps transport failures on the publish path. A missed
// publish leaves every consumer permanently unaware of the transition, so
// these errors always propagate to the caller; retry is a caller decision.
var ErrPublishFailed = errors.New("bus: publish failed")

// ErrReceiptExpired marks a delete against a receipt handle the transport
// no longer tracks. Deletes are idempotent: callers log this and move on.
var ErrReceiptExpired = errors.New("bus: receipt handle expired or unknown")

// Message is one queued delivery of a serialized envelope.
type Message struct {
	// Body is the serialized event envelope.
	Body []byte

	// ReceiptHandle identifies this specific delivery for acknowledgment.
	// It is only valid while the message's visibility window is open.
	ReceiptHandle string

	// ReceiveCount is how many times the transport has delivered this
	// message, starting at 1.
	ReceiveCount int
}

// Publisher hands envelopes to the bus for fan-out to all bound queues.
// Delivery is at-least-once per queue with no ordering guarantee.
type Publisher interface {
	// Publish sends one serialized envelope. Failures wrap ErrPublishFailed.
	Publish(ctx context.Context, body []byte) error
}

// Queue is one consumer's durable buffer of undelivered messages.
type Queue interface {
	// Receive long-polls for up to max messages, blocking up to wait for
	// at least one to arrive. Returns an empty slice on timeout.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)

	// Delete acknowledges one delivery by its receipt handle, removing the
	// message from the queue. Deleting an expired or already-deleted handle
	// returns ErrReceiptExpired; it is never fatal.
	Delete(ctx context.Context, receiptHandle string) error

	// Name identifies the queue for logging.
	Name() string
}
