package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ordermesh-systems/ordermesh/internal/bus/membus"
	"github.com/ordermesh-systems/ordermesh/internal/config"
	"github.com/ordermesh-systems/ordermesh/internal/consumer"
	"github.com/ordermesh-systems/ordermesh/internal/orders"
	"github.com/ordermesh-systems/ordermesh/internal/projection/analytics"
	"github.com/ordermesh-systems/ordermesh/internal/projection/notify"
	"github.com/ordermesh-systems/ordermesh/internal/projection/orderstore"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the full pipeline in-process on the memory transport",
	Long: `Run the publisher and all three consumers in one process over the
in-memory bus, publish the scripted order lifecycle, and print each
projection once the queues drain. No external services required.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	b := membus.New()
	queueOpts := membus.Options{
		VisibilityWindow: cfg.Consumers.VisibilityWindow,
		MaxReceive:       cfg.Consumers.MaxDeliver,
	}

	storeQueue := b.Bind(config.ConsumerOrderStore, queueOpts)
	analyticsQueue := b.Bind(config.ConsumerAnalytics, queueOpts)
	notifyQueue := b.Bind(config.ConsumerNotifications, queueOpts)

	store := orderstore.NewMemoryStore()
	analyticsHandler := analytics.NewHandler(logger)
	recorder := notify.NewRecorder()

	// Short waits so the demo drains promptly; production loops use the
	// configured long-poll values.
	loopCfg := consumer.Config{
		BatchSize: cfg.Consumers.BatchSize,
		WaitTime:  500 * time.Millisecond,
		PollDelay: 50 * time.Millisecond,
	}

	loops := []*consumer.Loop{
		consumer.New(storeQueue, orderstore.NewHandler(store, logger), logger, loopCfg),
		consumer.New(analyticsQueue, analyticsHandler, logger, loopCfg),
		consumer.New(notifyQueue, notify.NewHandler(notify.Multi{notify.NewLogNotifier(logger), recorder}, logger), logger, loopCfg),
	}
	for _, loop := range loops {
		go func() { _ = loop.Run(ctx) }()
	}

	svc := orders.NewService(b, logger)
	if err := runScenario(ctx, svc); err != nil {
		return err
	}

	// Wait for all queues to drain.
	drained := func() bool {
		return storeQueue.Depth() == 0 && analyticsQueue.Depth() == 0 && notifyQueue.Depth() == 0
	}
	deadline := time.Now().Add(10 * time.Second)
	for !drained() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	cancel()

	return printProjections(store, analyticsHandler, recorder)
}

func printProjections(store *orderstore.MemoryStore, h *analytics.Handler, recorder *notify.Recorder) error {
	records, err := store.List(context.Background())
	if err != nil {
		return err
	}

	fmt.Println("\n--- Order Store ---")
	for _, rec := range records {
		fmt.Printf("%s  %-10s customer=%s total=%.2f items=%d\n",
			rec.OrderID, rec.Status, rec.CustomerID, rec.Total, len(rec.Items))
	}

	s := h.Snapshot()
	fmt.Println("\n--- Analytics ---")
	fmt.Printf("Orders Created:   %d\n", s.Created)
	fmt.Printf("Orders Updated:   %d\n", s.Updated)
	fmt.Printf("Orders Cancelled: %d\n", s.Cancelled)
	fmt.Printf("Total Revenue:    $%.2f\n", s.Revenue)

	fmt.Println("\n--- Notifications ---")
	for _, e := range recorder.Entries() {
		if e.Reason != "" {
			fmt.Printf("%-12s order=%s customer=%s reason=%q\n", e.Kind, e.OrderID, e.CustomerID, e.Reason)
		} else {
			fmt.Printf("%-12s order=%s customer=%s\n", e.Kind, e.OrderID, e.CustomerID)
		}
	}
	return nil
}
