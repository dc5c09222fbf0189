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

var _ port.ShowtimeRepository = (*ShowtimeRepository)(nil)

type ShowtimeRepository struct {
	DB *pgxpool.Pool
}

func NewShowtimeRepository(pool *pgxpool.Pool) *ShowtimeRepository {
	return &ShowtimeRepository{DB: pool}
}

func (r *ShowtimeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Showtime, error) {
	return r.find(ctx, id, false)
}

// FindByIDForUpdate takes a row lock, serializing racing seat reservations
// on the same showtime. Only meaningful inside a transaction.
func (r *ShowtimeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Showtime, error) {
	return r.find(ctx, id, true)
}

func (r *ShowtimeRepository) find(ctx context.Context, id uuid.UUID, lock bool) (*domain.Showtime, error) {
	exec := getExecutor(ctx, r.DB)
	query := `
		SELECT id, movie_title, screening_time, auditorium_id, auditorium_name,
			seat_price_cents, currency, status, reserved_seats, created_at
		FROM showtimes WHERE id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	var (
		s        domain.Showtime
		reserved []byte
		cents    int64
		currency string
		status   string
	)
	err := exec.QueryRow(ctx, query, id).
		Scan(&s.ID, &s.MovieTitle, &s.ScreeningTime, &s.AuditoriumID, &s.AuditoriumName,
			&cents, &currency, &status, &reserved, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("showtime %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("find showtime %s: %w", id, err)
	}
	var seats []domain.Seat
	if err := json.Unmarshal(reserved, &seats); err != nil {
		return nil, fmt.Errorf("unmarshal reserved seats: %w", err)
	}
	s.SeatPrice = domain.MustMoney(cents, currency)
	s.Status = domain.ShowtimeStatus(status)
	s.RestoreReservedSeats(seats)
	return &s, nil
}

func (r *ShowtimeRepository) Save(ctx context.Context, s *domain.Showtime) error {
	reserved, err := json.Marshal(s.ReservedSeats())
	if err != nil {
		return fmt.Errorf("marshal reserved seats: %w", err)
	}
	exec := getExecutor(ctx, r.DB)
	_, err = exec.Exec(ctx, `
		INSERT INTO showtimes (id, movie_title, screening_time, auditorium_id, auditorium_name,
			seat_price_cents, currency, status, reserved_seats, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reserved_seats = EXCLUDED.reserved_seats`,
		s.ID, s.MovieTitle, s.ScreeningTime, s.AuditoriumID, s.AuditoriumName,
		s.SeatPrice.Amount(), s.SeatPrice.Currency(), string(s.Status), reserved, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("save showtime %s: %w", s.ID, err)
	}
	return nil
}
