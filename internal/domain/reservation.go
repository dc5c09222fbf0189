package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// HoldDuration is how long a pending reservation keeps its seats.
const HoldDuration = 10 * time.Minute

// Reservation holds seats for a showtime until confirmed or expired. The
// reservation owns its seat list; the showtime only answers availability.
type Reservation struct {
	ID          uuid.UUID
	ShowtimeID  uuid.UUID
	CustomerID  uuid.UUID
	Seats       []Seat
	TotalPrice  Money
	Status      ReservationStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	ExpiredAt   *time.Time

	events []Event
}

// NewReservation creates a pending reservation holding the given seats.
func NewReservation(id, showtimeID, customerID uuid.UUID, seats []Seat, totalPrice Money, now time.Time) (*Reservation, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: at least one seat is required", ErrValidation)
	}
	r := &Reservation{
		ID:         id,
		ShowtimeID: showtimeID,
		CustomerID: customerID,
		Seats:      seats,
		TotalPrice: totalPrice,
		Status:     ReservationStatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(HoldDuration),
	}
	r.raise(ReservationCreated{
		ReservationID: id,
		ShowtimeID:    showtimeID,
		CustomerID:    customerID,
		Seats:         seats,
		AmountCents:   totalPrice.Amount(),
		Currency:      totalPrice.Currency(),
		ExpiresAt:     r.ExpiresAt,
	})
	return r, nil
}

// Confirm moves a pending reservation to confirmed.
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != ReservationStatusPending {
		return fmt.Errorf("%w: reservation %s cannot be confirmed from %s", ErrConflict, r.ID, r.Status)
	}
	r.Status = ReservationStatusConfirmed
	r.ConfirmedAt = &now
	r.raise(ReservationConfirmed{ReservationID: r.ID, ShowtimeID: r.ShowtimeID})
	return nil
}

// Expire releases a pending reservation. Expiring a reservation that is
// already expired is a no-op so compensation can run repeatedly.
func (r *Reservation) Expire(now time.Time) error {
	switch r.Status {
	case ReservationStatusExpired:
		return nil
	case ReservationStatusPending:
		r.Status = ReservationStatusExpired
		r.ExpiredAt = &now
		r.raise(ReservationExpired{ReservationID: r.ID, ShowtimeID: r.ShowtimeID, Seats: r.Seats})
		return nil
	default:
		return fmt.Errorf("%w: reservation %s cannot expire from %s", ErrConflict, r.ID, r.Status)
	}
}

// IsPending reports whether the reservation still holds its seats tentatively.
func (r *Reservation) IsPending() bool {
	return r.Status == ReservationStatusPending
}

// IsLapsed reports whether a pending reservation outlived its hold time.
func (r *Reservation) IsLapsed(now time.Time) bool {
	return r.Status == ReservationStatusPending && now.After(r.ExpiresAt)
}

func (r *Reservation) raise(e Event) {
	r.events = append(r.events, e)
}

// Events returns facts raised since the last ClearEvents.
func (r *Reservation) Events() []Event {
	return r.events
}

func (r *Reservation) ClearEvents() {
	r.events = nil
}
