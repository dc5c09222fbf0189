package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/port"
)

var _ port.PaymentRepository = (*PaymentRepository)(nil)

type PaymentRepository struct {
	DB    *pgxpool.Pool
	facts FactRecorder
}

func NewPaymentRepository(pool *pgxpool.Pool, facts FactRecorder) *PaymentRepository {
	return &PaymentRepository{DB: pool, facts: facts}
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	exec := getExecutor(ctx, r.DB)
	var (
		p        domain.Payment
		cents    int64
		currency string
		method   string
		status   string
	)
	err := exec.QueryRow(ctx, `
		SELECT id, reservation_id, customer_id, amount_cents, currency, method, status,
			transaction_id, failure_reason, created_at, processed_at, refunded_at
		FROM payments WHERE id = $1`, id).
		Scan(&p.ID, &p.ReservationID, &p.CustomerID, &cents, &currency, &method, &status,
			&p.TransactionID, &p.FailureReason, &p.CreatedAt, &p.ProcessedAt, &p.RefundedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	p.Amount = domain.MustMoney(cents, currency)
	p.Method = domain.PaymentMethod(method)
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p *domain.Payment) error {
	if err := r.facts.Record(ctx, p.Events()...); err != nil {
		return err
	}

	exec := getExecutor(ctx, r.DB)
	_, err := exec.Exec(ctx, `
		INSERT INTO payments (id, reservation_id, customer_id, amount_cents, currency, method,
			status, transaction_id, failure_reason, created_at, processed_at, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			transaction_id = EXCLUDED.transaction_id,
			failure_reason = EXCLUDED.failure_reason,
			processed_at = EXCLUDED.processed_at,
			refunded_at = EXCLUDED.refunded_at`,
		p.ID, p.ReservationID, p.CustomerID, p.Amount.Amount(), p.Amount.Currency(),
		string(p.Method), string(p.Status), p.TransactionID, p.FailureReason,
		p.CreatedAt, p.ProcessedAt, p.RefundedAt)
	if err != nil {
		return fmt.Errorf("save payment %s: %w", p.ID, err)
	}

	p.ClearEvents()
	return nil
}
