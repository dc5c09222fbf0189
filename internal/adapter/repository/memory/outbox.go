package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/port"
)

var _ port.OutboxRepository = (*Outbox)(nil)

// Outbox is an in-process fact log with the same claim semantics as the
// postgres one: a claimed row is invisible to other claimers until released
// or deleted.
type Outbox struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*port.OutboxMessage
}

func NewOutbox() *Outbox {
	return &Outbox{rows: make(map[uuid.UUID]*port.OutboxMessage)}
}

func (o *Outbox) Append(_ context.Context, msgs ...port.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, msg := range msgs {
		cp := msg
		o.rows[msg.ID] = &cp
	}
	return nil
}

func (o *Outbox) ClaimBatch(_ context.Context, limit int, now time.Time) ([]port.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	unclaimed := make([]*port.OutboxMessage, 0, limit)
	for _, row := range o.rows {
		if row.ProcessedAt == nil {
			unclaimed = append(unclaimed, row)
		}
	}
	sort.Slice(unclaimed, func(i, j int) bool {
		return unclaimed[i].OccurredAt.Before(unclaimed[j].OccurredAt)
	})
	if len(unclaimed) > limit {
		unclaimed = unclaimed[:limit]
	}

	claimed := make([]port.OutboxMessage, 0, len(unclaimed))
	for _, row := range unclaimed {
		ts := now
		row.ProcessedAt = &ts
		claimed = append(claimed, *row)
	}
	return claimed, nil
}

func (o *Outbox) DeleteBatch(_ context.Context, ids []uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		delete(o.rows, id)
	}
	return nil
}

func (o *Outbox) ReleaseBatch(_ context.Context, ids []uuid.UUID, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range ids {
		if row, ok := o.rows[id]; ok {
			row.ProcessedAt = nil
			row.LastError = errMsg
		}
	}
	return nil
}

// Pending reports how many rows are unclaimed; a test helper.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, row := range o.rows {
		if row.ProcessedAt == nil {
			n++
		}
	}
	return n
}

// Size reports the total row count including claimed rows.
func (o *Outbox) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.rows)
}
