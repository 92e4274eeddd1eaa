package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/pix-ledger/internal/config"
	"github.com/josh-kwaku/pix-ledger/internal/events"
	"github.com/josh-kwaku/pix-ledger/internal/lock"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/metrics"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
	"github.com/josh-kwaku/pix-ledger/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Init("pix-ledger-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return err
		}
		logger.Info("migrations applied", "dir", cfg.MigrationsDir)
	}

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		ConnectAttempts:  30,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pub, err := newPublisher(cfg, rdb, logger)
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("failed to close publisher", "error", err)
		}
	}()

	app := wire(cfg, db, rdb, m)

	var workers sync.WaitGroup
	startWorkers(ctx, &workers, cfg, app, pub, m, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(cfg, app, m, reg),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "outbox_broker", cfg.OutboxBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			workers.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	workers.Wait()
	logger.Info("server stopped")
	return nil
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("connectRedis: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connectRedis: ping: %w", err)
	}
	return client, nil
}

func newPublisher(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (events.Publisher, error) {
	switch cfg.OutboxBroker {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "rabbitmq":
		return events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
	case "redis":
		return events.NewRedisStreamPublisher(rdb, cfg.RedisStream), nil
	default:
		return events.NewLogPublisher(logger), nil
	}
}

func startWorkers(
	ctx context.Context,
	wg *sync.WaitGroup,
	cfg *config.Config,
	app *application,
	pub events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) {
	webhooks := service.NewWebhookProcessor(app.webhookEvents, app.settlement, logger.With("worker", "webhook_processor"), cfg.WebhookPollInterval)
	relay := service.NewOutboxRelay(app.outbox, pub, m, logger.With("worker", "outbox_relay"), cfg.OutboxPollInterval)
	sweeper := service.NewStaleSweeper(app.withdraws, lock.NewRedisLock(app.redis), app.outbox, m, logger.With("worker", "stale_sweeper"), cfg.StaleWithdrawAfter)

	wg.Add(3)
	go func() {
		defer wg.Done()
		webhooks.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		relay.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := sweeper.Start(ctx, cfg.StaleWithdrawSchedule); err != nil {
			logger.Error("stale sweeper not started", "schedule", cfg.StaleWithdrawSchedule, "error", err)
		}
	}()
}
