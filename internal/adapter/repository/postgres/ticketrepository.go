package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/port"
)

var _ port.TicketRepository = (*TicketRepository)(nil)

type TicketRepository struct {
	DB    *pgxpool.Pool
	facts FactRecorder
}

func NewTicketRepository(pool *pgxpool.Pool, facts FactRecorder) *TicketRepository {
	return &TicketRepository{DB: pool, facts: facts}
}

func (r *TicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	exec := getExecutor(ctx, r.DB)
	var (
		t        domain.Ticket
		seats    []byte
		cents    int64
		currency string
		status   string
	)
	err := exec.QueryRow(ctx, `
		SELECT id, ticket_number, reservation_id, payment_id, showtime_id, customer_id,
			movie_title, screening_time, auditorium_name, seats, total_price_cents, currency,
			qr_payload, status, issued_at, used_at
		FROM tickets WHERE id = $1`, id).
		Scan(&t.ID, &t.TicketNumber, &t.ReservationID, &t.PaymentID, &t.ShowtimeID, &t.CustomerID,
			&t.MovieTitle, &t.ScreeningTime, &t.AuditoriumName, &seats, &cents, &currency,
			&t.QRPayload, &status, &t.IssuedAt, &t.UsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find ticket %s: %w", id, err)
	}
	if err := json.Unmarshal(seats, &t.Seats); err != nil {
		return nil, fmt.Errorf("unmarshal seats: %w", err)
	}
	t.TotalPrice = domain.MustMoney(cents, currency)
	t.Status = domain.TicketStatus(status)
	return &t, nil
}

func (r *TicketRepository) Save(ctx context.Context, t *domain.Ticket) error {
	if err := r.facts.Record(ctx, t.Events()...); err != nil {
		return err
	}

	seats, err := json.Marshal(t.Seats)
	if err != nil {
		return fmt.Errorf("marshal seats: %w", err)
	}
	exec := getExecutor(ctx, r.DB)
	_, err = exec.Exec(ctx, `
		INSERT INTO tickets (id, ticket_number, reservation_id, payment_id, showtime_id,
			customer_id, movie_title, screening_time, auditorium_name, seats,
			total_price_cents, currency, qr_payload, status, issued_at, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			used_at = EXCLUDED.used_at`,
		t.ID, t.TicketNumber, t.ReservationID, t.PaymentID, t.ShowtimeID,
		t.CustomerID, t.MovieTitle, t.ScreeningTime, t.AuditoriumName, seats,
		t.TotalPrice.Amount(), t.TotalPrice.Currency(), t.QRPayload, string(t.Status),
		t.IssuedAt, t.UsedAt)
	if err != nil {
		return fmt.Errorf("save ticket %s: %w", t.ID, err)
	}

	t.ClearEvents()
	return nil
}
