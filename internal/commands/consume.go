package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ordermesh-systems/ordermesh/internal/bus/natsjs"
	"github.com/ordermesh-systems/ordermesh/internal/config"
	"github.com/ordermesh-systems/ordermesh/internal/consumer"
	"github.com/ordermesh-systems/ordermesh/internal/logging"
	"github.com/ordermesh-systems/ordermesh/internal/projection/analytics"
	"github.com/ordermesh-systems/ordermesh/internal/projection/notify"
	"github.com/ordermesh-systems/ordermesh/internal/projection/orderstore"
)

var consumeName string

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run projection consumers against the bus",
	Long: `Run one or all projection consumers. Each consumer drains its own
durable queue and maintains its own projection; consumers are isolated
failure domains and may be run in separate processes.`,
	RunE: runConsume,
}

func init() {
	consumeCmd.Flags().StringVar(&consumeName, "consumer",
		"all", "consumer to run: order-store, analytics, notifications, or all")
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names, err := resolveConsumers(consumeName)
	if err != nil {
		return err
	}

	if cfg.Transport == config.TransportMemory {
		return errors.New("memory transport is in-process only; use 'ordermesh demo'")
	}

	client, err := natsjs.NewClient(natsjs.Config{
		URL:           cfg.NATS.URL,
		Name:          "ordermesh-consumer",
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

	loopCfg := consumer.Config{
		BatchSize: cfg.Consumers.BatchSize,
		WaitTime:  cfg.Consumers.WaitTime,
		PollDelay: cfg.Consumers.PollDelay,
	}

	var cleanups []func()
	defer func() {
		for _, f := range cleanups {
			f()
		}
	}()

	var wg sync.WaitGroup
	for _, name := range names {
		handler, cleanup, err := buildHandler(ctx, name)
		if err != nil {
			return err
		}
		if cleanup != nil {
			cleanups = append(cleanups, cleanup)
		}

		queue, err := client.Queue(ctx, natsjs.QueueConfig{
			Name:       name,
			AckWait:    cfg.Consumers.VisibilityWindow,
			MaxDeliver: cfg.Consumers.MaxDeliver,
		})
		if err != nil {
			return err
		}

		loop := consumer.New(queue, handler, logger, loopCfg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Run only returns on cancellation.
			_ = loop.Run(ctx)
		}()
	}

	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, &wg)
	}

	wg.Wait()
	logger.Info("consumers stopped")
	return nil
}

func resolveConsumers(name string) ([]string, error) {
	switch name {
	case "all":
		return []string{
			config.ConsumerOrderStore,
			config.ConsumerAnalytics,
			config.ConsumerNotifications,
		}, nil
	case config.ConsumerOrderStore, config.ConsumerAnalytics, config.ConsumerNotifications:
		return []string{name}, nil
	default:
		return nil, fmt.Errorf("unknown consumer %q", name)
	}
}

func buildHandler(ctx context.Context, name string) (consumer.Handler, func(), error) {
	switch name {
	case config.ConsumerOrderStore:
		return buildOrderStoreHandler(ctx)
	case config.ConsumerAnalytics:
		return analytics.NewHandler(logger), nil, nil
	case config.ConsumerNotifications:
		return buildNotifyHandler()
	default:
		return nil, nil, fmt.Errorf("unknown consumer %q", name)
	}
}

func buildOrderStoreHandler(ctx context.Context) (consumer.Handler, func(), error) {
	if cfg.OrderStore.Backend != "postgres" {
		return orderstore.NewHandler(orderstore.NewMemoryStore(), logger), nil, nil
	}

	if cfg.OrderStore.DatabaseURL == "" {
		return nil, nil, errors.New("order_store.database_url required for postgres backend")
	}

	logger.Info("running order store migrations")
	m, err := migrate.New("file://"+cfg.OrderStore.MigrationsPath, cfg.OrderStore.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := orderstore.NewPostgresStore(ctx, cfg.OrderStore.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return orderstore.NewHandler(store, logger), store.Close, nil
}

func buildNotifyHandler() (consumer.Handler, func(), error) {
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.Multi{
			notifier,
			notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout),
		}
	}

	var cleanup func()
	if cfg.Notify.DedupeRedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Notify.DedupeRedisAddr})
		notifier = notify.NewDeduper(notifier, client, cfg.Notify.DedupeTTL, logger)
		cleanup = func() { _ = client.Close() }
	}

	return notify.NewHandler(notifier, logger), cleanup, nil
}

func startMetricsServer(ctx context.Context, wg *sync.WaitGroup) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
