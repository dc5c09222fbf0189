package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/port"
)

var (
	_ port.ReservationRepository = (*ReservationRepo)(nil)
	_ port.PaymentRepository     = (*PaymentRepo)(nil)
	_ port.TicketRepository      = (*TicketRepo)(nil)
	_ port.ShowtimeRepository    = (*ShowtimeRepo)(nil)
	_ port.TxManager             = (*Tx)(nil)
)

type ReservationRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Reservation
	facts FactRecorder
}

func NewReservationRepo(facts FactRecorder) *ReservationRepo {
	return &ReservationRepo{items: make(map[uuid.UUID]domain.Reservation), facts: facts}
}

func (r *ReservationRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", id, domain.ErrNotFound)
	}
	return &item, nil
}

func (r *ReservationRepo) ListLapsed(_ context.Context, now time.Time) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lapsed []*domain.Reservation
	for _, item := range r.items {
		if item.IsLapsed(now) {
			cp := item
			lapsed = append(lapsed, &cp)
		}
	}
	return lapsed, nil
}

func (r *ReservationRepo) Save(ctx context.Context, res *domain.Reservation) error {
	if err := r.facts.Record(ctx, res.Events()...); err != nil {
		return err
	}
	res.ClearEvents()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[res.ID] = *res
	return nil
}

type PaymentRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Payment
	facts FactRecorder
}

func NewPaymentRepo(facts FactRecorder) *PaymentRepo {
	return &PaymentRepo{items: make(map[uuid.UUID]domain.Payment), facts: facts}
}

func (r *PaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	return &item, nil
}

func (r *PaymentRepo) Save(ctx context.Context, p *domain.Payment) error {
	if err := r.facts.Record(ctx, p.Events()...); err != nil {
		return err
	}
	p.ClearEvents()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *p
	return nil
}

type TicketRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]domain.Ticket
	facts FactRecorder
}

func NewTicketRepo(facts FactRecorder) *TicketRepo {
	return &TicketRepo{items: make(map[uuid.UUID]domain.Ticket), facts: facts}
}

func (r *TicketRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, domain.ErrNotFound)
	}
	return &item, nil
}

func (r *TicketRepo) Save(ctx context.Context, t *domain.Ticket) error {
	if err := r.facts.Record(ctx, t.Events()...); err != nil {
		return err
	}
	t.ClearEvents()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[t.ID] = *t
	return nil
}

type ShowtimeRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*domain.Showtime
}

func NewShowtimeRepo() *ShowtimeRepo {
	return &ShowtimeRepo{items: make(map[uuid.UUID]*domain.Showtime)}
}

// cloneShowtime rebuilds the held-seat set so callers never share it with
// the stored copy.
func cloneShowtime(s *domain.Showtime) *domain.Showtime {
	cp := *s
	cp.RestoreReservedSeats(s.ReservedSeats())
	return &cp
}

func (r *ShowtimeRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Showtime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("showtime %s: %w", id, domain.ErrNotFound)
	}
	return cloneShowtime(item), nil
}

// FindByIDForUpdate is a plain read here; mutual exclusion between racing
// reserve transactions comes from Tx serializing WithinTx.
func (r *ShowtimeRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Showtime, error) {
	return r.FindByID(ctx, id)
}

func (r *ShowtimeRepo) Save(_ context.Context, s *domain.Showtime) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID] = cloneShowtime(s)
	return nil
}
