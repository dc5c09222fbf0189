// Package recovery contains the background sweepers: one resumes or
// compensates sagas whose process died, the other expires lapsed seat
// holds. Both are periodic loops that log failures and keep going.
package recovery

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/logger"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
)

var (
	sagasSwept = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recovery_sagas_swept_total",
		Help: "Sagas picked up by the recovery sweeper, by outcome.",
	}, []string{"outcome"})

	reservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recovery_reservations_expired_total",
		Help: "Lapsed reservations expired by the sweeper.",
	})
)

// Config tunes the saga sweeper.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// StalenessGrace is how long an incomplete saga must sit untouched
	// before the sweeper considers its owner dead.
	StalenessGrace time.Duration
	// LeaseTTL bounds how long this sweeper owns a saga it picked up.
	LeaseTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.StalenessGrace <= 0 {
		c.StalenessGrace = 5 * time.Minute
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 2 * time.Minute
	}
	return c
}

// SagaSweeper resumes abandoned sagas of one type. The lease acquired per
// saga fences competing sweeper instances; resumption itself is safe to
// repeat because steps are idempotent.
type SagaSweeper[S saga.Stateful] struct {
	cfg      Config
	store    port.SagaStore
	engine   *saga.Engine[S]
	fresh    func() S
	sagaType string
	owner    string
	clock    clock.Clock
}

func NewSagaSweeper[S saga.Stateful](cfg Config, store port.SagaStore, engine *saga.Engine[S],
	fresh func() S, sagaType, owner string, clk clock.Clock) *SagaSweeper[S] {

	return &SagaSweeper[S]{
		cfg:      cfg.withDefaults(),
		store:    store,
		engine:   engine,
		fresh:    fresh,
		sagaType: sagaType,
		owner:    owner,
		clock:    clk,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *SagaSweeper[S]) Run(ctx context.Context) {
	log := logger.From(ctx).With("saga_type", s.sagaType, "owner", s.owner)
	log.Info("saga recovery sweeper started", "interval", s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep picks up every stale incomplete saga it can lease and resumes it.
// A timed-out saga is compensated by the engine's resume path.
func (s *SagaSweeper[S]) Sweep(ctx context.Context) {
	log := logger.From(ctx).With("saga_type", s.sagaType)

	recs, err := s.store.ListIncomplete(ctx, s.sagaType)
	if err != nil {
		log.Error("list incomplete sagas failed", "error", err)
		return
	}

	now := s.clock.Now()
	for _, rec := range recs {
		if now.Sub(rec.LastUpdatedAt) < s.cfg.StalenessGrace {
			continue // still being worked on by a live owner
		}

		ok, err := s.store.AcquireLease(ctx, rec.SagaID, s.owner, s.cfg.LeaseTTL, now)
		if err != nil {
			log.Error("acquire lease failed", "saga_id", rec.SagaID, "error", err)
			continue
		}
		if !ok {
			sagasSwept.WithLabelValues("lease_held").Inc()
			continue
		}

		state := s.fresh()
		if err := saga.Unmarshal(rec, state); err != nil {
			log.Error("unmarshal saga failed", "saga_id", rec.SagaID, "error", err)
			sagasSwept.WithLabelValues("corrupt").Inc()
			continue
		}

		log.Info("recovering saga", "saga_id", rec.SagaID, "status", rec.Status, "retry_count", rec.RetryCount)
		if err := s.engine.Resume(ctx, state); err != nil {
			log.Warn("saga recovery ended in compensation", "saga_id", rec.SagaID, "error", err)
			sagasSwept.WithLabelValues("compensated").Inc()
			continue
		}
		sagasSwept.WithLabelValues("resumed").Inc()
	}
}

// ReservationSweeper expires pending reservations whose hold lapsed and
// releases their seats.
type ReservationSweeper struct {
	interval     time.Duration
	reservations port.ReservationRepository
	showtimes    port.ShowtimeRepository
	tx           port.TxManager
	clock        clock.Clock
}

func NewReservationSweeper(interval time.Duration, reservations port.ReservationRepository,
	showtimes port.ShowtimeRepository, tx port.TxManager, clk clock.Clock) *ReservationSweeper {

	if interval <= 0 {
		interval = time.Minute
	}
	return &ReservationSweeper{
		interval:     interval,
		reservations: reservations,
		showtimes:    showtimes,
		tx:           tx,
		clock:        clk,
	}
}

func (s *ReservationSweeper) Run(ctx context.Context) {
	log := logger.From(ctx)
	log.Info("reservation expiration sweeper started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *ReservationSweeper) Sweep(ctx context.Context) {
	log := logger.From(ctx)
	now := s.clock.Now()

	lapsed, err := s.reservations.ListLapsed(ctx, now)
	if err != nil {
		log.Error("list lapsed reservations failed", "error", err)
		return
	}

	for _, reservation := range lapsed {
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := reservation.Expire(now); err != nil {
				return err
			}
			if err := s.reservations.Save(ctx, reservation); err != nil {
				return err
			}
			showtime, err := s.showtimes.FindByIDForUpdate(ctx, reservation.ShowtimeID)
			if err != nil {
				return err
			}
			showtime.ReleaseSeats(reservation.Seats)
			return s.showtimes.Save(ctx, showtime)
		})
		if err != nil {
			log.Error("expire reservation failed", "reservation_id", reservation.ID, "error", err)
			continue
		}
		log.Info("reservation expired", "reservation_id", reservation.ID)
		reservationsExpired.Inc()
	}
}
