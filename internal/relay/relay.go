// Package relay drains fact logs into the read model and the broker.
// Pollers (one per source) claim batches and feed a bounded channel; a
// fixed worker pool drains it, fanning out per-fact work. A full channel
// blocks the pollers, so the relay never claims unboundedly far ahead of
// what the workers can process.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/logger"
	"github.com/cinetix/cinetix/internal/port"
)

// Source is one upstream fact log. Several write-side stores can feed a
// single relay; each batch remembers where it was claimed from so the
// acknowledgement lands on the right store.
type Source struct {
	Name   string
	Outbox port.OutboxRepository
}

// Batch is a claimed set of rows from one source.
type Batch struct {
	Source *Source
	Msgs   []port.OutboxMessage
}

// Config tunes the pipeline. Zero values fall back to the defaults.
type Config struct {
	BatchSize            int
	Workers              int
	MaxConcurrentBatches int
	FanOut               int
	PollInterval         time.Duration
	ErrorBackoff         time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxConcurrentBatches <= 0 {
		c.MaxConcurrentBatches = 8
	}
	if c.FanOut <= 0 {
		c.FanOut = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	return c
}

type Relay struct {
	cfg       Config
	sources   []*Source
	projector port.Projector
	publisher port.EventPublisher
	clock     clock.Clock
}

func New(cfg Config, sources []*Source, projector port.Projector, publisher port.EventPublisher, clk clock.Clock) *Relay {
	return &Relay{
		cfg:       cfg.withDefaults(),
		sources:   sources,
		projector: projector,
		publisher: publisher,
		clock:     clk,
	}
}

// Run blocks until ctx is cancelled and every in-flight batch has been
// acknowledged one way or the other.
func (r *Relay) Run(ctx context.Context) {
	queue := make(chan Batch, r.cfg.MaxConcurrentBatches*2)

	var pollers sync.WaitGroup
	for _, src := range r.sources {
		pollers.Add(1)
		go func(src *Source) {
			defer pollers.Done()
			r.poll(ctx, src, queue)
		}(src)
	}

	var workers sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			// In-flight batches finish even during shutdown; a half-acked
			// batch would otherwise stay claimed until released by hand.
			ackCtx := context.WithoutCancel(ctx)
			for batch := range queue {
				queueDepth.Dec()
				r.process(ackCtx, batch)
			}
		}(i)
	}

	pollers.Wait()
	close(queue)
	workers.Wait()
}

func (r *Relay) poll(ctx context.Context, src *Source, queue chan<- Batch) {
	log := logger.From(ctx).With("source", src.Name)
	log.Info("outbox poller started")

	for {
		if ctx.Err() != nil {
			return
		}
		msgs, err := src.Outbox.ClaimBatch(ctx, r.cfg.BatchSize, r.clock.Now())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("claim batch failed", "error", err)
			pollErrors.WithLabelValues(src.Name).Inc()
			sleep(ctx, r.cfg.ErrorBackoff)
			continue
		}
		if len(msgs) == 0 {
			sleep(ctx, r.cfg.PollInterval)
			continue
		}

		select {
		case queue <- Batch{Source: src, Msgs: msgs}:
			queueDepth.Inc()
		case <-ctx.Done():
			// Claimed but never handed to a worker: give the rows back.
			ids := messageIDs(msgs)
			if err := src.Outbox.ReleaseBatch(context.WithoutCancel(ctx), ids, "relay shutdown"); err != nil {
				log.Error("release batch on shutdown failed", "error", err)
			}
			return
		}
	}
}

// process relays one batch: every fact is projected and published; only
// when all succeed is the batch deleted from its source. Any failure
// releases the whole claim with the error recorded on the rows.
func (r *Relay) process(ctx context.Context, batch Batch) {
	log := logger.From(ctx).With("source", batch.Source.Name, "batch_size", len(batch.Msgs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, r.cfg.FanOut)
	for _, group := range groupByType(batch.Msgs) {
		for _, msg := range group {
			wg.Add(1)
			sem <- struct{}{}
			go func(msg port.OutboxMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := r.relayOne(ctx, msg); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}(msg)
		}
	}
	wg.Wait()

	ids := messageIDs(batch.Msgs)
	if firstErr != nil {
		log.Warn("batch failed, releasing claim", "error", firstErr)
		batches.WithLabelValues(batch.Source.Name, "released").Inc()
		if err := batch.Source.Outbox.ReleaseBatch(ctx, ids, firstErr.Error()); err != nil {
			log.Error("release batch failed", "error", err)
		}
		return
	}

	if err := batch.Source.Outbox.DeleteBatch(ctx, ids); err != nil {
		// Rows are already published; releasing re-relays them, which the
		// idempotent projection and broker dedup absorb. Better than rows
		// stuck claimed forever.
		log.Error("delete batch failed, releasing claim", "error", err)
		batches.WithLabelValues(batch.Source.Name, "delete_failed").Inc()
		if rerr := batch.Source.Outbox.ReleaseBatch(ctx, ids, err.Error()); rerr != nil {
			log.Error("release batch failed", "error", rerr)
		}
		return
	}
	batches.WithLabelValues(batch.Source.Name, "done").Inc()
}

// relayOne applies a fact downstream: read model first, broker second.
func (r *Relay) relayOne(ctx context.Context, msg port.OutboxMessage) error {
	if err := r.projector.Apply(ctx, msg); err != nil {
		factFailures.WithLabelValues("project").Inc()
		return fmt.Errorf("project %s: %w", msg.ID, err)
	}
	if err := r.publisher.Publish(ctx, msg); err != nil {
		factFailures.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish %s: %w", msg.ID, err)
	}
	factsRelayed.WithLabelValues(msg.EventType).Inc()
	return nil
}

// groupByType keeps facts of one type together so workers touch hot
// projection keys in runs. An optimization, not a correctness requirement.
func groupByType(msgs []port.OutboxMessage) map[string][]port.OutboxMessage {
	groups := make(map[string][]port.OutboxMessage)
	for _, msg := range msgs {
		groups[msg.EventType] = append(groups[msg.EventType], msg)
	}
	return groups
}

func messageIDs(msgs []port.OutboxMessage) []uuid.UUID {
	ids := make([]uuid.UUID, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.ID
	}
	return ids
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
