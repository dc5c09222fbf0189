// Package fact turns domain events into self-describing outbox rows.
package fact

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/idgen"
	"github.com/cinetix/cinetix/internal/port"
)

// Envelope is the wire shape of a fact payload. The type tag and timestamp
// ride inside the body as well as in headers, so a consumer can reconstruct
// the fact without a shared schema registry.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Body       json.RawMessage `json:"body"`
}

// NewMessage builds an outbox row for one domain event.
func NewMessage(gen idgen.Generator, now time.Time, e domain.Event) (port.OutboxMessage, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return port.OutboxMessage{}, fmt.Errorf("marshal %s body: %w", e.EventType(), err)
	}
	payload, err := json.Marshal(Envelope{Type: e.EventType(), OccurredAt: now, Body: body})
	if err != nil {
		return port.OutboxMessage{}, fmt.Errorf("marshal %s envelope: %w", e.EventType(), err)
	}
	return port.OutboxMessage{
		ID:            gen.NewID(),
		EventType:     e.EventType(),
		AggregateType: e.AggregateType(),
		AggregateID:   e.AggregateID().String(),
		Payload:       payload,
		OccurredAt:    now,
	}, nil
}

// Recorder appends domain events to the outbox. When the context carries a
// transaction the rows join it.
type Recorder struct {
	Outbox port.OutboxRepository
	Gen    idgen.Generator
	Clock  clock.Clock
}

func NewRecorder(outbox port.OutboxRepository, gen idgen.Generator, clk clock.Clock) *Recorder {
	return &Recorder{Outbox: outbox, Gen: gen, Clock: clk}
}

// Record converts and appends the events in order.
func (r *Recorder) Record(ctx context.Context, events ...domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	now := r.Clock.Now()
	msgs := make([]port.OutboxMessage, 0, len(events))
	for _, e := range events {
		msg, err := NewMessage(r.Gen, now, e)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return r.Outbox.Append(ctx, msgs...)
}
