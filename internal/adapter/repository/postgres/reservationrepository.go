package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/port"
)

var _ port.ReservationRepository = (*ReservationRepository)(nil)

type ReservationRepository struct {
	DB    *pgxpool.Pool
	facts FactRecorder
}

func NewReservationRepository(pool *pgxpool.Pool, facts FactRecorder) *ReservationRepository {
	return &ReservationRepository{DB: pool, facts: facts}
}

const reservationColumns = `id, showtime_id, customer_id, seats, total_price_cents, currency,
	status, created_at, expires_at, confirmed_at, expired_at`

func (r *ReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	exec := getExecutor(ctx, r.DB)
	row := exec.QueryRow(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = $1", id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find reservation %s: %w", id, err)
	}
	return res, nil
}

func (r *ReservationRepository) ListLapsed(ctx context.Context, now time.Time) ([]*domain.Reservation, error) {
	exec := getExecutor(ctx, r.DB)
	rows, err := exec.Query(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE status = $1 AND expires_at < $2",
		string(domain.ReservationStatusPending), now)
	if err != nil {
		return nil, fmt.Errorf("list lapsed reservations: %w", err)
	}
	defer rows.Close()

	var items []*domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *ReservationRepository) Save(ctx context.Context, res *domain.Reservation) error {
	if err := r.facts.Record(ctx, res.Events()...); err != nil {
		return err
	}

	seats, err := json.Marshal(res.Seats)
	if err != nil {
		return fmt.Errorf("marshal seats: %w", err)
	}
	exec := getExecutor(ctx, r.DB)
	_, err = exec.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confirmed_at = EXCLUDED.confirmed_at,
			expired_at = EXCLUDED.expired_at`,
		res.ID, res.ShowtimeID, res.CustomerID, seats,
		res.TotalPrice.Amount(), res.TotalPrice.Currency(),
		string(res.Status), res.CreatedAt, res.ExpiresAt, res.ConfirmedAt, res.ExpiredAt)
	if err != nil {
		return fmt.Errorf("save reservation %s: %w", res.ID, err)
	}

	res.ClearEvents()
	return nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res      domain.Reservation
		seats    []byte
		cents    int64
		currency string
		status   string
	)
	err := row.Scan(&res.ID, &res.ShowtimeID, &res.CustomerID, &seats, &cents, &currency,
		&status, &res.CreatedAt, &res.ExpiresAt, &res.ConfirmedAt, &res.ExpiredAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(seats, &res.Seats); err != nil {
		return nil, fmt.Errorf("unmarshal seats: %w", err)
	}
	res.TotalPrice = domain.MustMoney(cents, currency)
	res.Status = domain.ReservationStatus(status)
	return &res, nil
}
