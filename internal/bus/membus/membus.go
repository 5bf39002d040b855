// Package membus is an in-process implementation of the bus and queue
// contracts. It models the transport behaviors the consumers must survive:
// at-least-once delivery, visibility windows with redelivery, and
// dead-lettering of messages that exhaust their receive budget.
//
// It backs tests and the CLI's memory transport mode.
package membus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ordermesh-systems/ordermesh/internal/bus"
)

const (
	// DefaultVisibilityWindow hides a received message from subsequent
	// receives until it is deleted or the window elapses.
	DefaultVisibilityWindow = 30 * time.Second

	// DefaultMaxReceive is the delivery budget before a message is
	// quarantined on the dead-letter list.
	DefaultMaxReceive = 5

	pollTick = 10 * time.Millisecond
)

// Options configure a bound queue.
type Options struct {
	VisibilityWindow time.Duration
	MaxReceive       int
}

func (o Options) withDefaults() Options {
	if o.VisibilityWindow <= 0 {
		o.VisibilityWindow = DefaultVisibilityWindow
	}
	if o.MaxReceive <= 0 {
		o.MaxReceive = DefaultMaxReceive
	}
	return o
}

// Bus fans published messages out to every bound queue.
type Bus struct {
	mu     sync.Mutex
	queues []*Queue
}

// New creates an empty in-memory bus.
func New() *Bus {
	return &Bus{}
}

// Bind creates a queue subscribed to this bus. Every subsequent publish is
// copied onto it.
func (b *Bus) Bind(name string, opts Options) *Queue {
	q := &Queue{
		name: name,
		opts: opts.withDefaults(),
	}
	b.mu.Lock()
	b.queues = append(b.queues, q)
	b.mu.Unlock()
	return q
}

// Publish copies body onto every bound queue.
func (b *Bus) Publish(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", bus.ErrPublishFailed, err)
	}
	b.mu.Lock()
	queues := make([]*Queue, len(b.queues))
	copy(queues, b.queues)
	b.mu.Unlock()

	for _, q := range queues {
		q.enqueue(body)
	}
	return nil
}

type qmsg struct {
	body         []byte
	receipt      string
	receiveCount int
	visibleAt    time.Time
}

// Queue is one consumer's buffer on the in-memory bus.
type Queue struct {
	name string
	opts Options

	mu      sync.Mutex
	seq     int
	pending []*qmsg
	dead    []bus.Message
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) enqueue(body []byte) {
	msg := &qmsg{body: append([]byte(nil), body...)}
	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()
}

// Receive long-polls for up to max messages, blocking up to wait for at
// least one visible message. Each returned message is hidden for the
// queue's visibility window and carries a fresh receipt handle.
func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]bus.Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(wait)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch := q.takeVisible(max)
		if len(batch) > 0 || !time.Now().Before(deadline) {
			return batch, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollTick):
		}
	}
}

func (q *Queue) takeVisible(max int) []bus.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var batch []bus.Message
	keep := q.pending[:0]
	for _, m := range q.pending {
		if len(batch) == max || m.visibleAt.After(now) {
			keep = append(keep, m)
			continue
		}
		m.receiveCount++
		if m.receiveCount > q.opts.MaxReceive {
			q.dead = append(q.dead, bus.Message{
				Body:         m.body,
				ReceiveCount: m.receiveCount,
			})
			continue
		}
		q.seq++
		m.receipt = fmt.Sprintf("%s-%d", q.name, q.seq)
		m.visibleAt = now.Add(q.opts.VisibilityWindow)
		batch = append(batch, bus.Message{
			Body:          m.body,
			ReceiptHandle: m.receipt,
			ReceiveCount:  m.receiveCount,
		})
		keep = append(keep, m)
	}
	q.pending = keep
	return batch
}

func (q *Queue) removeLocked(target *qmsg) {
	for i, m := range q.pending {
		if m == target {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// Delete acknowledges a delivery. Receipt handles are rotated on each
// redelivery, so a handle from an expired visibility window no longer
// matches and reports bus.ErrReceiptExpired.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.pending {
		if m.receipt == receiptHandle {
			q.removeLocked(m)
			return nil
		}
	}
	return bus.ErrReceiptExpired
}

// DeadLetters returns the messages quarantined after exhausting the
// receive budget.
func (q *Queue) DeadLetters() []bus.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]bus.Message, len(q.dead))
	copy(out, q.dead)
	return out
}

// Depth reports how many messages remain on the queue, visible or not.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
