package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinetix/cinetix/internal/port"
)

var _ port.OutboxRepository = (*OutboxRepository)(nil)

// OutboxRepository is the durable fact log. Claims ride on
// FOR UPDATE SKIP LOCKED so concurrent relay instances partition the backlog
// between themselves without blocking.
type OutboxRepository struct {
	DB *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{DB: pool}
}

func (r *OutboxRepository) Append(ctx context.Context, msgs ...port.OutboxMessage) error {
	exec := getExecutor(ctx, r.DB)
	for _, msg := range msgs {
		_, err := exec.Exec(ctx, `
			INSERT INTO outbox_messages (id, event_type, aggregate_type, aggregate_id, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			msg.ID, msg.EventType, msg.AggregateType, msg.AggregateID, msg.Payload, msg.OccurredAt)
		if err != nil {
			return fmt.Errorf("append outbox message %s: %w", msg.ID, err)
		}
	}
	return nil
}

func (r *OutboxRepository) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]port.OutboxMessage, error) {
	exec := getExecutor(ctx, r.DB)
	rows, err := exec.Query(ctx, `
		UPDATE outbox_messages SET processed_at = $2
		WHERE id IN (
			SELECT id FROM outbox_messages
			WHERE processed_at IS NULL
			ORDER BY occurred_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, aggregate_type, aggregate_id, payload, occurred_at, processed_at, last_error`,
		limit, now)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var claimed []port.OutboxMessage
	for rows.Next() {
		var m port.OutboxMessage
		if err := rows.Scan(&m.ID, &m.EventType, &m.AggregateType, &m.AggregateID,
			&m.Payload, &m.OccurredAt, &m.ProcessedAt, &m.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		claimed = append(claimed, m)
	}
	return claimed, rows.Err()
}

func (r *OutboxRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	exec := getExecutor(ctx, r.DB)
	if _, err := exec.Exec(ctx, "DELETE FROM outbox_messages WHERE id = ANY($1)", ids); err != nil {
		return fmt.Errorf("delete outbox batch: %w", err)
	}
	return nil
}

func (r *OutboxRepository) ReleaseBatch(ctx context.Context, ids []uuid.UUID, errMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	exec := getExecutor(ctx, r.DB)
	_, err := exec.Exec(ctx,
		"UPDATE outbox_messages SET processed_at = NULL, last_error = $2 WHERE id = ANY($1)",
		ids, errMsg)
	if err != nil {
		return fmt.Errorf("release outbox batch: %w", err)
	}
	return nil
}
