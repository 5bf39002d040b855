// Package orders owns order lifecycle transitions. Each operation turns a
// caller intent into exactly one published envelope; it never waits on or
// reads any consumer's projection.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ordermesh-systems/ordermesh/internal/bus"
	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
)

// OrderData carries the caller-supplied fields of a new order.
type OrderData struct {
	CustomerID string
	Items      []event.Item
	Total      float64
}

// Service publishes order lifecycle events.
type Service struct {
	publisher bus.Publisher
	logger    *logging.Logger
}

// NewService creates an order authoring service on the given publisher.
func NewService(publisher bus.Publisher, logger *logging.Logger) *Service {
	return &Service{
		publisher: publisher,
		logger:    logger.With(logging.Component("orders")),
	}
}

// CreateOrder assigns a new order identifier, publishes OrderCreated with
// the full order snapshot, and returns the identifier. Publish failures
// propagate; whether to retry is the caller's decision.
func (s *Service) CreateOrder(ctx context.Context, data OrderData) (string, error) {
	orderID := uuid.NewString()

	detail := event.CreatedDetail{
		OrderID:    orderID,
		Status:     event.StatusCreated,
		Timestamp:  time.Now().UTC(),
		CustomerID: data.CustomerID,
		Items:      data.Items,
		Total:      data.Total,
	}
	if err := s.publish(ctx, event.TypeOrderCreated, detail); err != nil {
		return "", err
	}

	s.logger.Info("order created", logging.OrderID(orderID), logging.CustomerID(data.CustomerID))
	return orderID, nil
}

// UpdateOrder publishes OrderUpdated carrying only the changed fields.
func (s *Service) UpdateOrder(ctx context.Context, orderID string, changes event.Changes) error {
	detail := event.UpdatedDetail{
		OrderID:   orderID,
		Status:    event.StatusUpdated,
		Timestamp: time.Now().UTC(),
		Changes:   changes,
	}
	if err := s.publish(ctx, event.TypeOrderUpdated, detail); err != nil {
		return err
	}

	s.logger.Info("order updated", logging.OrderID(orderID))
	return nil
}

// CancelOrder publishes OrderCancelled with the cancellation reason.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	detail := event.CancelledDetail{
		OrderID:   orderID,
		Status:    event.StatusCancelled,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
	}
	if err := s.publish(ctx, event.TypeOrderCancelled, detail); err != nil {
		return err
	}

	s.logger.Info("order cancelled", logging.OrderID(orderID))
	return nil
}

func (s *Service) publish(ctx context.Context, detailType event.Type, detail any) error {
	env, err := event.New(detailType, detail)
	if err != nil {
		return err
	}
	body, err := env.Encode()
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, body); err != nil {
		return fmt.Errorf("publish %s: %w", detailType, err)
	}
	return nil
}
