package port

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SagaRecord is the persisted form of a saga state. Queryable progress
// columns sit beside an opaque serialized payload so the store stays
// decoupled from any specific saga's field shape.
type SagaRecord struct {
	SagaID         uuid.UUID
	SagaType       string
	Status         string
	CurrentStep    int
	TotalSteps     int
	FailureReason  string
	RetryCount     int
	CreatedAt      time.Time
	LastUpdatedAt  time.Time
	CompletedAt    *time.Time
	Owner          string
	LeaseExpiresAt *time.Time
	Data           []byte
}

// SagaStore persists saga progress. Update is last-writer-wins except when a
// lease is held: AcquireLease fences recovery so two sweepers do not resume
// the same saga concurrently.
type SagaStore interface {
	GetByID(ctx context.Context, sagaID uuid.UUID) (SagaRecord, error)
	// ListIncomplete returns sagas of the given type not in a terminal status.
	ListIncomplete(ctx context.Context, sagaType string) ([]SagaRecord, error)
	// ListTimedOut returns incomplete sagas created before cutoff.
	ListTimedOut(ctx context.Context, sagaType string, cutoff time.Time) ([]SagaRecord, error)
	Save(ctx context.Context, rec SagaRecord) error
	// Update upserts when the record is absent.
	Update(ctx context.Context, rec SagaRecord) error
	// AcquireLease claims ownership of a saga until now+ttl. It succeeds only
	// when no live lease is held by another owner; an expired lease is broken
	// by the time threshold alone.
	AcquireLease(ctx context.Context, sagaID uuid.UUID, owner string, ttl time.Duration, now time.Time) (bool, error)
}
