// Package app wires adapters, saga engine and services into one container.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinetix/cinetix/internal/adapter/gateway/sim"
	"github.com/cinetix/cinetix/internal/adapter/repository/postgres"
	"github.com/cinetix/cinetix/internal/config"
	"github.com/cinetix/cinetix/internal/fact"
	"github.com/cinetix/cinetix/internal/pkg/circuitbreaker"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/idgen"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/recovery"
	"github.com/cinetix/cinetix/internal/saga/ticketpurchase"
	"github.com/cinetix/cinetix/internal/service"
)

type Container struct {
	Config *config.Config
	Pool   *pgxpool.Pool

	RepoReservation port.ReservationRepository
	RepoPayment     port.PaymentRepository
	RepoTicket      port.TicketRepository
	RepoShowtime    port.ShowtimeRepository
	Outbox          port.OutboxRepository
	SagaStore       port.SagaStore
	Tx              port.TxManager

	Facts   *fact.Recorder
	Gateway port.PaymentGateway

	SvcTicketing *service.Ticketing

	SagaSweeper        *recovery.SagaSweeper[*ticketpurchase.State]
	ReservationSweeper *recovery.ReservationSweeper
}

func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*Container, error) {
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	c := &Container{
		Config: cfg,
		Pool:   pool,
	}

	clk := clock.Real{}
	gen := idgen.Random{}

	c.Outbox = postgres.NewOutboxRepository(pool)
	c.Facts = fact.NewRecorder(c.Outbox, gen, clk)

	c.RepoReservation = postgres.NewReservationRepository(pool, c.Facts)
	c.RepoPayment = postgres.NewPaymentRepository(pool, c.Facts)
	c.RepoTicket = postgres.NewTicketRepository(pool, c.Facts)
	c.RepoShowtime = postgres.NewShowtimeRepository(pool)
	c.SagaStore = postgres.NewSagaStore(pool)
	c.Tx = postgres.NewTxManager(pool)

	breaker := circuitbreaker.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown, cfg.BreakerHalfOpenMax)
	c.Gateway = sim.New(breaker, gen)

	deps := ticketpurchase.Deps{
		Reservations: c.RepoReservation,
		Payments:     c.RepoPayment,
		Tickets:      c.RepoTicket,
		Showtimes:    c.RepoShowtime,
		Gateway:      c.Gateway,
		Tx:           c.Tx,
		Gen:          gen,
		Clock:        clk,
	}
	engine := ticketpurchase.NewEngine(deps, c.SagaStore, c.Facts)

	c.SvcTicketing = service.NewTicketing(engine, c.SagaStore, c.Facts, gen, clk)

	c.SagaSweeper = recovery.NewSagaSweeper(recovery.Config{
		Interval:       cfg.RecoveryInterval,
		StalenessGrace: cfg.RecoveryStalenessGrace,
		LeaseTTL:       cfg.RecoveryLeaseTTL,
	}, c.SagaStore, engine, func() *ticketpurchase.State { return &ticketpurchase.State{} },
		ticketpurchase.SagaType, InstanceID(cfg), clk)

	c.ReservationSweeper = recovery.NewReservationSweeper(cfg.ReservationSweep,
		c.RepoReservation, c.RepoShowtime, c.Tx, clk)

	return c, nil
}

// InstanceID returns the configured instance name, or a host-derived one so
// two unconfigured processes still fence each other's leases.
func InstanceID(cfg *config.Config) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	host, err := os.Hostname()
	if err != nil {
		host = "cinetix"
	}
	return host + "-" + uuid.NewString()[:8]
}
