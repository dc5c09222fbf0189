package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
)

// Aggregate repositories persist state transitions together with the domain
// facts the transition raised, in one local transaction. Implementations
// clear the aggregate's event buffer on successful save.

type ReservationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	// ListLapsed returns pending reservations whose hold time passed.
	ListLapsed(ctx context.Context, now time.Time) ([]*domain.Reservation, error)
	Save(ctx context.Context, r *domain.Reservation) error
}

type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Save(ctx context.Context, p *domain.Payment) error
}

type TicketRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Ticket, error)
	Save(ctx context.Context, t *domain.Ticket) error
}

type ShowtimeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Showtime, error)
	// FindByIDForUpdate locks the showtime against concurrent writers until
	// the surrounding transaction ends. Every read-modify-save of the seat
	// map must go through it, or two racing purchases can both pass the
	// availability check and double-book.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Showtime, error)
	Save(ctx context.Context, s *domain.Showtime) error
}
