package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// Notification kinds recorded and delivered.
const (
	KindConfirmation = "confirmation"
	KindUpdate       = "update"
	KindCancellation = "cancellation"
)

// LogNotifier writes notifications to the structured log. It stands in
// for a real email/SMS provider in demos and local runs.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(logging.Component("notifier"))}
}

func (n *LogNotifier) OrderConfirmation(_ context.Context, orderID, customerID string) error {
	n.logger.Info("sending order confirmation",
		logging.OrderID(orderID), logging.CustomerID(customerID))
	return nil
}

func (n *LogNotifier) OrderUpdate(_ context.Context, orderID, customerID string) error {
	n.logger.Info("sending order update notification",
		logging.OrderID(orderID), logging.CustomerID(customerID))
	return nil
}

func (n *LogNotifier) OrderCancellation(_ context.Context, orderID, customerID, reason string) error {
	n.logger.Info("sending order cancellation notification",
		logging.OrderID(orderID), logging.CustomerID(customerID),
		"reason", reason)
	return nil
}

// WebhookNotifier POSTs notifications to an HTTP endpoint.
type WebhookNotifier struct {
	URL     string
	Timeout time.Duration
	client  *http.Client
}

// NewWebhookNotifier creates a webhook-backed notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		URL:     url,
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (n *WebhookNotifier) OrderConfirmation(ctx context.Context, orderID, customerID string) error {
	return n.post(ctx, KindConfirmation, orderID, customerID, "")
}

func (n *WebhookNotifier) OrderUpdate(ctx context.Context, orderID, customerID string) error {
	return n.post(ctx, KindUpdate, orderID, customerID, "")
}

func (n *WebhookNotifier) OrderCancellation(ctx context.Context, orderID, customerID, reason string) error {
	return n.post(ctx, KindCancellation, orderID, customerID, reason)
}

func (n *WebhookNotifier) post(ctx context.Context, kind, orderID, customerID, reason string) error {
	payload := map[string]any{
		"kind":        kind,
		"order_id":    orderID,
		"customer_id": customerID,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if reason != "" {
		payload["reason"] = reason
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OrderMesh-Notify/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Entry is one recorded notification.
type Entry struct {
	Kind       string
	OrderID    string
	CustomerID string
	Reason     string
}

// Recorder keeps an in-memory notification history. It backs tests and
// the demo summary.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recording notifier.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OrderConfirmation(_ context.Context, orderID, customerID string) error {
	r.record(Entry{Kind: KindConfirmation, OrderID: orderID, CustomerID: customerID})
	return nil
}

func (r *Recorder) OrderUpdate(_ context.Context, orderID, customerID string) error {
	r.record(Entry{Kind: KindUpdate, OrderID: orderID, CustomerID: customerID})
	return nil
}

func (r *Recorder) OrderCancellation(_ context.Context, orderID, customerID, reason string) error {
	r.record(Entry{Kind: KindCancellation, OrderID: orderID, CustomerID: customerID, Reason: reason})
	return nil
}

func (r *Recorder) record(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded notifications in order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Multi fans one notification out to several notifiers, stopping at the
// first failure.
type Multi []Notifier

func (m Multi) OrderConfirmation(ctx context.Context, orderID, customerID string) error {
	for _, n := range m {
		if err := n.OrderConfirmation(ctx, orderID, customerID); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OrderUpdate(ctx context.Context, orderID, customerID string) error {
	for _, n := range m {
		if err := n.OrderUpdate(ctx, orderID, customerID); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) OrderCancellation(ctx context.Context, orderID, customerID, reason string) error {
	for _, n := range m {
		if err := n.OrderCancellation(ctx, orderID, customerID, reason); err != nil {
			return err
		}
	}
	return nil
}
