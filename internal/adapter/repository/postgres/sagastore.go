package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
)

var _ port.SagaStore = (*SagaStore)(nil)

// SagaStore persists saga progress. The upsert never touches the lease
// columns, which belong to AcquireLease alone.
type SagaStore struct {
	DB *pgxpool.Pool
}

func NewSagaStore(pool *pgxpool.Pool) *SagaStore {
	return &SagaStore{DB: pool}
}

const sagaColumns = `saga_id, saga_type, status, current_step, total_steps, failure_reason,
	retry_count, created_at, last_updated_at, completed_at, owner, lease_expires_at, data`

func terminalStatuses() []string {
	return []string{
		string(saga.StatusCompleted),
		string(saga.StatusCompensated),
		string(saga.StatusFailed),
	}
}

func (s *SagaStore) GetByID(ctx context.Context, sagaID uuid.UUID) (port.SagaRecord, error) {
	exec := getExecutor(ctx, s.DB)
	rec, err := scanSaga(exec.QueryRow(ctx,
		"SELECT "+sagaColumns+" FROM sagas WHERE saga_id = $1", sagaID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return port.SagaRecord{}, fmt.Errorf("saga %s: %w", sagaID, domain.ErrNotFound)
		}
		return port.SagaRecord{}, fmt.Errorf("find saga %s: %w", sagaID, err)
	}
	return rec, nil
}

func (s *SagaStore) ListIncomplete(ctx context.Context, sagaType string) ([]port.SagaRecord, error) {
	return s.list(ctx,
		"SELECT "+sagaColumns+" FROM sagas WHERE saga_type = $1 AND status != ALL($2) ORDER BY created_at",
		sagaType, terminalStatuses())
}

func (s *SagaStore) ListTimedOut(ctx context.Context, sagaType string, cutoff time.Time) ([]port.SagaRecord, error) {
	return s.list(ctx,
		"SELECT "+sagaColumns+" FROM sagas WHERE saga_type = $1 AND status != ALL($2) AND created_at < $3 ORDER BY created_at",
		sagaType, terminalStatuses(), cutoff)
}

func (s *SagaStore) list(ctx context.Context, query string, args ...any) ([]port.SagaRecord, error) {
	exec := getExecutor(ctx, s.DB)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sagas: %w", err)
	}
	defer rows.Close()

	var items []port.SagaRecord
	for rows.Next() {
		rec, err := scanSaga(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saga: %w", err)
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (s *SagaStore) Save(ctx context.Context, rec port.SagaRecord) error {
	return s.Update(ctx, rec)
}

func (s *SagaStore) Update(ctx context.Context, rec port.SagaRecord) error {
	exec := getExecutor(ctx, s.DB)
	_, err := exec.Exec(ctx, `
		INSERT INTO sagas (saga_id, saga_type, status, current_step, total_steps, failure_reason,
			retry_count, created_at, last_updated_at, completed_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (saga_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			failure_reason = EXCLUDED.failure_reason,
			retry_count = EXCLUDED.retry_count,
			last_updated_at = EXCLUDED.last_updated_at,
			completed_at = EXCLUDED.completed_at,
			data = EXCLUDED.data`,
		rec.SagaID, rec.SagaType, rec.Status, rec.CurrentStep, rec.TotalSteps, rec.FailureReason,
		rec.RetryCount, rec.CreatedAt, rec.LastUpdatedAt, rec.CompletedAt, rec.Data)
	if err != nil {
		return fmt.Errorf("save saga %s: %w", rec.SagaID, err)
	}
	return nil
}

func (s *SagaStore) AcquireLease(ctx context.Context, sagaID uuid.UUID, owner string, ttl time.Duration, now time.Time) (bool, error) {
	exec := getExecutor(ctx, s.DB)
	tag, err := exec.Exec(ctx, `
		UPDATE sagas SET owner = $2, lease_expires_at = $4
		WHERE saga_id = $1
		  AND (owner = '' OR owner = $2 OR lease_expires_at IS NULL OR lease_expires_at <= $3)`,
		sagaID, owner, now, now.Add(ttl))
	if err != nil {
		return false, fmt.Errorf("acquire lease on saga %s: %w", sagaID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSaga(row pgx.Row) (port.SagaRecord, error) {
	var rec port.SagaRecord
	err := row.Scan(&rec.SagaID, &rec.SagaType, &rec.Status, &rec.CurrentStep, &rec.TotalSteps,
		&rec.FailureReason, &rec.RetryCount, &rec.CreatedAt, &rec.LastUpdatedAt, &rec.CompletedAt,
		&rec.Owner, &rec.LeaseExpiresAt, &rec.Data)
	return rec, err
}
