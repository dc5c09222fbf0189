package port

import "context"

// EventPublisher hands one fact to the message broker. The message key is the
// fact's aggregate id so the broker's per-key ordering applies; metadata
// travels in headers. Publishing the same message id twice must be safe for
// downstream consumers (at-least-once delivery).
type EventPublisher interface {
	Publish(ctx context.Context, msg OutboxMessage) error
}

// Projector applies one fact to the downstream read-model store with
// replace-by-id semantics, so re-delivery of a fact is a no-op.
type Projector interface {
	Apply(ctx context.Context, msg OutboxMessage) error
}
