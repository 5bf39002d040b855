// Package natsjs implements the bus and queue contracts on NATS JetStream.
//
// One stream captures every published order event; each consumer binds a
// durable pull consumer with explicit acks, so the JetStream AckWait is the
// visibility window and MaxDeliver bounds redelivery of poison messages.
package natsjs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ordermesh-systems/ordermesh/internal/bus"
)

// Config holds NATS connection and stream configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for connection identification.
	Name string

	// Stream is the JetStream stream capturing order events.
	Stream string

	// Subject is the subject order events are published to.
	Subject string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for infinite reconnects.
	MaxReconnects int

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// Timeout is the connection timeout.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "ordermesh",
		Stream:        "ORDERS",
		Subject:       "orders.events.lifecycle",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// Client wraps a NATS connection with a JetStream context.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  Config
}

// NewClient connects to NATS and initializes JetStream.
func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &Client{conn: conn, js: js, cfg: cfg}, nil
}

// Close drains and closes the underlying connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// EnsureStream creates or updates the order event stream. Interest
// retention keeps a message until every bound consumer has acknowledged
// its own delivery, which is the per-queue delete semantic consumers
// rely on.
func (c *Client) EnsureStream(ctx context.Context) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  []string{c.cfg.Subject},
		MaxAge:    24 * time.Hour,
		Retention: jetstream.InterestPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("create/update stream %s: %w", c.cfg.Stream, err)
	}
	return nil
}

// Publisher publishes serialized envelopes onto the stream subject.
type Publisher struct {
	js      jetstream.JetStream
	subject string
}

// Publisher returns a bus.Publisher bound to the configured subject.
func (c *Client) Publisher() *Publisher {
	return &Publisher{js: c.js, subject: c.cfg.Subject}
}

// Publish sends one serialized envelope and waits for the stream ack.
func (p *Publisher) Publish(ctx context.Context, body []byte) error {
	if _, err := p.js.Publish(ctx, p.subject, body); err != nil {
		return fmt.Errorf("%w: %w", bus.ErrPublishFailed, err)
	}
	return nil
}

// QueueConfig configures one consumer's durable queue on the stream.
type QueueConfig struct {
	// Name is the durable consumer name.
	Name string

	// AckWait is the visibility window: time to wait for acknowledgment
	// before the message becomes redeliverable.
	AckWait time.Duration

	// MaxDeliver bounds redelivery attempts for poison messages.
	MaxDeliver int
}

// Queue binds a durable pull consumer and returns it as a bus.Queue.
func (c *Client) Queue(ctx context.Context, cfg QueueConfig) (*Queue, error) {
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}

	stream, err := c.js.Stream(ctx, c.cfg.Stream)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", c.cfg.Stream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          cfg.Name,
		Durable:       cfg.Name,
		FilterSubject: c.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update consumer %s: %w", cfg.Name, err)
	}

	return &Queue{
		name:     cfg.Name,
		ackWait:  cfg.AckWait,
		consumer: consumer,
		inflight: make(map[string]inflightMsg),
	}, nil
}

type inflightMsg struct {
	msg     jetstream.Msg
	fetched time.Time
}

// Queue adapts a JetStream durable pull consumer to the bus.Queue contract.
type Queue struct {
	name     string
	ackWait  time.Duration
	consumer jetstream.Consumer

	mu       sync.Mutex
	seq      int
	inflight map[string]inflightMsg
}

func (q *Queue) Name() string { return q.name }

// Receive fetches up to max messages, waiting up to wait for the first.
// Each fetched message is tracked against a receipt handle until deleted
// or its visibility window lapses.
func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]bus.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := q.consumer.Fetch(max, jetstream.FetchMaxWait(wait))
	if err != nil {
		return nil, fmt.Errorf("fetch from consumer %s: %w", q.name, err)
	}

	var out []bus.Message
	for msg := range batch.Messages() {
		receiveCount := 1
		if meta, err := msg.Metadata(); err == nil {
			receiveCount = int(meta.NumDelivered)
		}
		out = append(out, bus.Message{
			Body:          msg.Data(),
			ReceiptHandle: q.track(msg),
			ReceiveCount:  receiveCount,
		})
	}
	if err := batch.Error(); err != nil {
		return out, fmt.Errorf("fetch batch from consumer %s: %w", q.name, err)
	}
	return out, nil
}

func (q *Queue) track(msg jetstream.Msg) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Drop handles whose ack window has lapsed; the server will redeliver
	// those messages with a fresh delivery anyway.
	cutoff := time.Now().Add(-q.ackWait)
	for handle, m := range q.inflight {
		if m.fetched.Before(cutoff) {
			delete(q.inflight, handle)
		}
	}

	q.seq++
	handle := fmt.Sprintf("%s-%d", q.name, q.seq)
	q.inflight[handle] = inflightMsg{msg: msg, fetched: time.Now()}
	return handle
}

// Delete acknowledges the delivery behind the receipt handle.
func (q *Queue) Delete(ctx context.Context, receiptHandle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	m, ok := q.inflight[receiptHandle]
	if ok {
		delete(q.inflight, receiptHandle)
	}
	q.mu.Unlock()

	if !ok {
		return bus.ErrReceiptExpired
	}
	if err := m.msg.Ack(); err != nil {
		return fmt.Errorf("ack message on consumer %s: %w", q.name, err)
	}
	return nil
}
