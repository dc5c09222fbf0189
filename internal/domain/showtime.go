package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ShowtimeStatus string

const (
	ShowtimeStatusScheduled ShowtimeStatus = "scheduled"
	ShowtimeStatusCancelled ShowtimeStatus = "cancelled"
)

// Showtime is one screening of a movie in an auditorium. It tracks which
// seats are held so that concurrent reservations for the same seats conflict
// at exactly one place.
type Showtime struct {
	ID             uuid.UUID
	MovieTitle     string
	ScreeningTime  time.Time
	AuditoriumID   uuid.UUID
	AuditoriumName string
	SeatPrice      Money
	Status         ShowtimeStatus
	CreatedAt      time.Time

	reserved map[Seat]struct{}
}

// NewShowtime schedules a screening.
func NewShowtime(id uuid.UUID, movieTitle string, screeningTime time.Time, auditoriumID uuid.UUID, auditoriumName string, seatPrice Money, now time.Time) (*Showtime, error) {
	if movieTitle == "" {
		return nil, fmt.Errorf("%w: movie title is required", ErrValidation)
	}
	return &Showtime{
		ID:             id,
		MovieTitle:     movieTitle,
		ScreeningTime:  screeningTime,
		AuditoriumID:   auditoriumID,
		AuditoriumName: auditoriumName,
		SeatPrice:      seatPrice,
		Status:         ShowtimeStatusScheduled,
		CreatedAt:      now,
		reserved:       make(map[Seat]struct{}),
	}, nil
}

// RestoreReservedSeats rehydrates the held-seat set from storage.
func (s *Showtime) RestoreReservedSeats(seats []Seat) {
	s.reserved = make(map[Seat]struct{}, len(seats))
	for _, seat := range seats {
		s.reserved[seat] = struct{}{}
	}
}

// ReservedSeats returns the currently held seats.
func (s *Showtime) ReservedSeats() []Seat {
	seats := make([]Seat, 0, len(s.reserved))
	for seat := range s.reserved {
		seats = append(seats, seat)
	}
	return seats
}

// SeatsAvailable reports whether none of the requested seats are held.
func (s *Showtime) SeatsAvailable(seats []Seat) bool {
	for _, seat := range seats {
		if _, held := s.reserved[seat]; held {
			return false
		}
	}
	return true
}

// ReserveSeats marks the seats held. It fails when the showtime is not
// scheduled, has already screened, or any requested seat is taken.
func (s *Showtime) ReserveSeats(seats []Seat, now time.Time) error {
	if s.Status != ShowtimeStatusScheduled {
		return fmt.Errorf("%w: cannot reserve seats for a %s showtime", ErrConflict, s.Status)
	}
	if now.After(s.ScreeningTime) {
		return fmt.Errorf("%w: cannot reserve seats for a past showtime", ErrConflict)
	}
	for _, seat := range seats {
		if _, held := s.reserved[seat]; held {
			return fmt.Errorf("%w: seat %s", ErrSeatsUnavailable, seat.Label())
		}
	}
	for _, seat := range seats {
		s.reserved[seat] = struct{}{}
	}
	return nil
}

// ReleaseSeats frees the given seats. Releasing a seat that is not held is a
// no-op, so reservation-expiry compensation can run repeatedly.
func (s *Showtime) ReleaseSeats(seats []Seat) {
	for _, seat := range seats {
		delete(s.reserved, seat)
	}
}

// Cancel cancels the screening. Not allowed within two hours of start.
func (s *Showtime) Cancel(now time.Time) error {
	if s.Status == ShowtimeStatusCancelled {
		return fmt.Errorf("%w: showtime %s is already cancelled", ErrConflict, s.ID)
	}
	if s.ScreeningTime.Sub(now) < 2*time.Hour {
		return fmt.Errorf("%w: cannot cancel a showtime within 2 hours of start", ErrConflict)
	}
	s.Status = ShowtimeStatusCancelled
	return nil
}

// PriceFor computes the total price for n seats.
func (s *Showtime) PriceFor(n int) (Money, error) {
	return s.SeatPrice.MultiplyBy(n)
}
