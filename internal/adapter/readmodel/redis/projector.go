// Package redis maintains the query-side documents. Every fact is applied
// as a replace-by-id write, so redelivering a fact leaves the store in the
// same state it was already in.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinetix/cinetix/internal/fact"
	"github.com/cinetix/cinetix/internal/port"
)

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
	})
}

var _ port.Projector = (*Projector)(nil)

type Projector struct {
	rdb *redis.Client
}

func NewProjector(rdb *redis.Client) *Projector {
	return &Projector{rdb: rdb}
}

// Document is the stored read-model shape: one current-state record per
// aggregate, carrying the body of the fact that produced it.
type Document struct {
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Status        string          `json:"status"`
	LastEventType string          `json:"last_event_type"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Body          json.RawMessage `json:"body"`
}

func (p *Projector) Apply(ctx context.Context, msg port.OutboxMessage) error {
	var env fact.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return fmt.Errorf("decode fact %s: %w", msg.ID, err)
	}

	doc := Document{
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		Status:        statusOf(msg.EventType),
		LastEventType: msg.EventType,
		UpdatedAt:     env.OccurredAt,
		Body:          env.Body,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	key := msg.AggregateType + ":" + msg.AggregateID
	if err := p.rdb.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("project %s: %w", key, err)
	}
	return nil
}

// statusOf derives the aggregate's current status from the fact name, e.g.
// "reservation.confirmed" → "confirmed".
func statusOf(eventType string) string {
	if i := strings.LastIndex(eventType, "."); i >= 0 {
		return eventType[i+1:]
	}
	return eventType
}

// Get fetches one projected document; used by query handlers and tests.
func (p *Projector) Get(ctx context.Context, aggregateType, aggregateID string) (Document, error) {
	data, err := p.rdb.Get(ctx, aggregateType+":"+aggregateID).Bytes()
	if err != nil {
		return Document{}, fmt.Errorf("get %s:%s: %w", aggregateType, aggregateID, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
