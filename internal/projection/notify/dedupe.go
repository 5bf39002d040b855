package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// Deduper wraps a Notifier with a Redis delivery ledger so redelivered
// envelopes do not renotify the customer. One SETNX per order id and
// notification kind, expiring after TTL.
//
// Ledger failures are transient and propagate, leaving the message for
// redelivery rather than risking a lost notification.
type Deduper struct {
	next   Notifier
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewDeduper creates a deduplicating notifier in front of next.
func NewDeduper(next Notifier, client *redis.Client, ttl time.Duration, logger *logging.Logger) *Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With(logging.Component("notify-dedupe")),
	}
}

func (d *Deduper) OrderConfirmation(ctx context.Context, orderID, customerID string) error {
	return d.once(ctx, KindConfirmation, orderID, func() error {
		return d.next.OrderConfirmation(ctx, orderID, customerID)
	})
}

func (d *Deduper) OrderUpdate(ctx context.Context, orderID, customerID string) error {
	return d.once(ctx, KindUpdate, orderID, func() error {
		return d.next.OrderUpdate(ctx, orderID, customerID)
	})
}

func (d *Deduper) OrderCancellation(ctx context.Context, orderID, customerID, reason string) error {
	return d.once(ctx, KindCancellation, orderID, func() error {
		return d.next.OrderCancellation(ctx, orderID, customerID, reason)
	})
}

func (d *Deduper) once(ctx context.Context, kind, orderID string, send func() error) error {
	key := fmt.Sprintf("ordermesh:notify:%s:%s", orderID, kind)

	fresh, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return fmt.Errorf("notify dedupe ledger: %w", err)
	}
	if !fresh {
		d.logger.Info("duplicate notification suppressed",
			logging.OrderID(orderID), "kind", kind)
		return nil
	}

	if err := send(); err != nil {
		// Release the claim so the redelivered message can retry the send.
		if delErr := d.client.Del(ctx, key).Err(); delErr != nil {
			d.logger.Warn("failed to release dedupe claim",
				logging.OrderID(orderID), logging.Error(delErr))
		}
		return err
	}
	return nil
}
