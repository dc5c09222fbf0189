// The relay binary drains the outbox into NATS JetStream and the Redis
// read model. Several relays may run against the same database; claims are
// fenced with FOR UPDATE SKIP LOCKED so no fact is published by two of them
// concurrently.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cinetix/cinetix/internal/adapter/events/nats"
	"github.com/cinetix/cinetix/internal/adapter/readmodel/redis"
	"github.com/cinetix/cinetix/internal/adapter/repository/postgres"
	"github.com/cinetix/cinetix/internal/app"
	"github.com/cinetix/cinetix/internal/config"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/logger"
	"github.com/cinetix/cinetix/internal/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init(parseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	publisher, err := nats.NewPublisher(cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer publisher.Close()

	rdb := redis.NewClient(cfg.RedisAddr)
	defer rdb.Close()

	r := relay.New(relay.Config{
		BatchSize:            cfg.RelayBatchSize,
		Workers:              cfg.RelayWorkers,
		MaxConcurrentBatches: cfg.RelayMaxBatches,
		FanOut:               cfg.RelayFanOut,
		PollInterval:         cfg.RelayPollInterval,
		ErrorBackoff:         cfg.RelayErrorBackoff,
	}, []*relay.Source{
		{Name: app.InstanceID(cfg), Outbox: postgres.NewOutboxRepository(pool)},
	}, redis.NewProjector(rdb), publisher, clock.Real{})

	// Metrics only; the relay has no API surface.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server", "error", err)
		}
	}()

	log.Info("relay running", "batch_size", cfg.RelayBatchSize, "workers", cfg.RelayWorkers)
	r.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
