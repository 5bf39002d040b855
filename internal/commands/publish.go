package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/ordermesh-systems/ordermesh/internal/bus/natsjs"
	"github.com/ordermesh-systems/ordermesh/internal/config"
	"github.com/ordermesh-systems/ordermesh/internal/event"
	"github.com/ordermesh-systems/ordermesh/internal/orders"
)

var publishCount int

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish order lifecycle events to the bus",
	Long: `Publish order events to the NATS JetStream transport.

Without flags this runs the scripted lifecycle scenario: create an order,
update it, then cancel it. With --count it seeds random orders instead.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().IntVar(&publishCount, "count", 0, "number of random orders to seed (0 = scripted scenario)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Transport == config.TransportMemory {
		return errors.New("memory transport is in-process only; use 'ordermesh demo'")
	}

	client, err := natsjs.NewClient(natsjs.Config{
		URL:           cfg.NATS.URL,
		Name:          "ordermesh-publisher",
		Stream:        cfg.NATS.Stream,
		Subject:       cfg.NATS.Subject,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.EnsureStream(ctx); err != nil {
		return err
	}

	svc := orders.NewService(client.Publisher(), logger)

	if publishCount > 0 {
		return seedOrders(ctx, svc, publishCount)
	}
	return runScenario(ctx, svc)
}

// runScenario publishes the canonical create → update → cancel lifecycle
// for a single order.
func runScenario(ctx context.Context, svc *orders.Service) error {
	orderID, err := svc.CreateOrder(ctx, orders.OrderData{
		CustomerID: "cust123",
		Items: []event.Item{
			{ProductID: "prod1", Quantity: 2, Price: 19.99},
			{ProductID: "prod2", Quantity: 1, Price: 29.99},
		},
		Total: 69.97,
	})
	if err != nil {
		return err
	}

	time.Sleep(2 * time.Second)

	newTotal := 89.96
	if err := svc.UpdateOrder(ctx, orderID, event.Changes{
		Items: []event.Item{
			{ProductID: "prod1", Quantity: 3, Price: 19.99},
			{ProductID: "prod2", Quantity: 1, Price: 29.99},
		},
		Total: &newTotal,
	}); err != nil {
		return err
	}

	time.Sleep(2 * time.Second)

	return svc.CancelOrder(ctx, orderID, "Customer requested cancellation")
}

// seedOrders publishes count random orders, updating some and cancelling
// others so every consumer sees all three event types.
func seedOrders(ctx context.Context, svc *orders.Service, count int) error {
	for i := 0; i < count; i++ {
		items := make([]event.Item, gofakeit.Number(1, 4))
		total := 0.0
		for j := range items {
			items[j] = event.Item{
				ProductID: "prod-" + gofakeit.LetterN(6),
				Quantity:  gofakeit.Number(1, 5),
				Price:     gofakeit.Price(5, 200),
			}
			total += items[j].Price * float64(items[j].Quantity)
		}

		orderID, err := svc.CreateOrder(ctx, orders.OrderData{
			CustomerID: "cust-" + gofakeit.LetterN(8),
			Items:      items,
			Total:      total,
		})
		if err != nil {
			return fmt.Errorf("seed order %d: %w", i+1, err)
		}

		switch gofakeit.Number(0, 3) {
		case 0:
			newTotal := total + gofakeit.Price(5, 50)
			if err := svc.UpdateOrder(ctx, orderID, event.Changes{Total: &newTotal}); err != nil {
				return fmt.Errorf("seed order %d update: %w", i+1, err)
			}
		case 1:
			if err := svc.CancelOrder(ctx, orderID, gofakeit.Sentence(4)); err != nil {
				return fmt.Errorf("seed order %d cancel: %w", i+1, err)
			}
		}
	}
	return nil
}
