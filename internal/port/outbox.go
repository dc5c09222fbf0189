package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is one fact-log row awaiting relay. A nil ProcessedAt means
// the row is unclaimed; claiming stamps it so competing relay instances never
// pick up the same row twice in a polling round.
type OutboxMessage struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	OccurredAt    time.Time
	ProcessedAt   *time.Time
	LastError     string
}

// OutboxRepository is the durable local fact log.
type OutboxRepository interface {
	// Append records facts. When the context carries a transaction the rows
	// join it, which is how aggregate writes and their facts stay atomic.
	Append(ctx context.Context, msgs ...OutboxMessage) error

	// ClaimBatch atomically selects up to limit unclaimed rows ordered by
	// occurrence time, skipping rows locked by concurrent claimers, and
	// stamps them claimed. Returns the claimed rows.
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]OutboxMessage, error)

	// DeleteBatch removes rows after they were projected and published.
	DeleteBatch(ctx context.Context, ids []uuid.UUID) error

	// ReleaseBatch clears the claim on the rows and records the error,
	// making them eligible for re-claim.
	ReleaseBatch(ctx context.Context, ids []uuid.UUID, errMsg string) error
}
