package logging

import "log/slog"

// Common field names for consistent logging across publisher and consumers.
const (
	FieldComponent  = "component"
	FieldConsumer   = "consumer"
	FieldOrderID    = "order_id"
	FieldCustomerID = "customer_id"
	FieldEventType  = "event_type"
	FieldQueue      = "queue"
	FieldReceipt    = "receipt_handle"
	FieldError      = "error"
)

// Component returns a slog attribute for the emitting component.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Consumer returns a slog attribute for the consumer name.
func Consumer(name string) slog.Attr {
	return slog.String(FieldConsumer, name)
}

// OrderID returns a slog attribute for an order identifier.
func OrderID(id string) slog.Attr {
	return slog.String(FieldOrderID, id)
}

// CustomerID returns a slog attribute for a customer identifier.
func CustomerID(id string) slog.Attr {
	return slog.String(FieldCustomerID, id)
}

// EventType returns a slog attribute for an envelope detail-type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// Queue returns a slog attribute for a queue name.
func Queue(name string) slog.Attr {
	return slog.String(FieldQueue, name)
}

// Receipt returns a slog attribute for a delivery receipt handle.
func Receipt(handle string) slog.Attr {
	return slog.String(FieldReceipt, handle)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
