// Package consumer provides the poll-process-acknowledge loop shared by
// every projection consumer. One loop instance drains one queue, strictly
// one message at a time, so handlers never need internal locking.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/ordermesh-systems/ordermesh/internal/bus"
	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// Handler applies one decoded envelope to a projection.
//
// Returning nil acknowledges the message, including for envelopes the
// handler logged and dropped (unknown types, out-of-order arrivals that can
// never succeed). Returning an error leaves the message unacknowledged so
// the transport redelivers it; reserve errors for transient failures where
// a retry can help.
type Handler interface {
	Apply(ctx context.Context, env *event.Envelope) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, env *event.Envelope) error

func (f HandlerFunc) Apply(ctx context.Context, env *event.Envelope) error {
	return f(ctx, env)
}

// Default loop tuning, matching the transport's long-poll limits.
const (
	DefaultBatchSize = 10
	DefaultWaitTime  = 20 * time.Second
	DefaultPollDelay = 100 * time.Millisecond
)

// Config tunes a poll loop.
type Config struct {
	// BatchSize is the maximum number of messages per receive (≤ 10).
	BatchSize int

	// WaitTime is the long-poll wait for at least one message.
	WaitTime time.Duration

	// PollDelay is the pause between batch steps.
	PollDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 || c.BatchSize > DefaultBatchSize {
		c.BatchSize = DefaultBatchSize
	}
	if c.WaitTime <= 0 {
		c.WaitTime = DefaultWaitTime
	}
	if c.PollDelay <= 0 {
		c.PollDelay = DefaultPollDelay
	}
	return c
}

// Loop drains one queue into one handler.
type Loop struct {
	queue   bus.Queue
	handler Handler
	logger  *logging.Logger
	cfg     Config
}

// New creates a poll loop for the given queue and handler.
func New(queue bus.Queue, handler Handler, logger *logging.Logger, cfg Config) *Loop {
	return &Loop{
		queue:   queue,
		handler: handler,
		logger:  logger.With(logging.Queue(queue.Name())),
		cfg:     cfg.withDefaults(),
	}
}

// Run polls until ctx is cancelled. Transport errors are logged and the
// loop continues after the poll delay; nothing short of cancellation stops
// it.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("consumer started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := l.queue.Receive(ctx, l.cfg.BatchSize, l.cfg.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Error("receive failed", logging.Error(err))
		}

		for _, msg := range msgs {
			l.process(ctx, msg)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.PollDelay):
		}
	}
}

// process handles one delivery. The message is deleted if and only if the
// handler returned nil; every other path leaves the receipt handle unused
// so the visibility window drives redelivery.
func (l *Loop) process(ctx context.Context, msg bus.Message) {
	env, err := event.Decode(msg.Body)
	if err != nil {
		// Poison path: redelivery will fail identically until the
		// transport's delivery budget quarantines the message.
		l.logger.Error("malformed message body",
			logging.Error(err),
			logging.Receipt(msg.ReceiptHandle))
		return
	}

	if err := l.handler.Apply(ctx, env); err != nil {
		l.logger.Error("handler failed, leaving message for redelivery",
			logging.EventType(string(env.DetailType)),
			logging.OrderID(env.OrderID()),
			logging.Error(err))
		return
	}

	if err := l.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		if errors.Is(err, bus.ErrReceiptExpired) {
			l.logger.Warn("receipt handle expired before delete",
				logging.Receipt(msg.ReceiptHandle))
			return
		}
		l.logger.Error("delete failed", logging.Error(err),
			logging.Receipt(msg.ReceiptHandle))
	}
}
