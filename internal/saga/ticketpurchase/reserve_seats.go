package ticketpurchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/saga"
)

// reserveSeatsStep holds the seats on the showtime and creates the pending
// reservation, both in one transaction so a half-done hold cannot leak.
type reserveSeatsStep struct {
	d Deps
}

func (s *reserveSeatsStep) Name() string { return "ReserveSeats" }
func (s *reserveSeatsStep) Order() int   { return 1 }

func (s *reserveSeatsStep) Execute(ctx context.Context, st *State) saga.StepResult {
	if st.SeatsReserved && st.ReservationID != uuid.Nil {
		return saga.Success("seats already reserved")
	}

	now := s.d.Clock.Now()
	var reservationID uuid.UUID
	err := s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		showtime, err := s.d.Showtimes.FindByIDForUpdate(ctx, st.ShowtimeID)
		if err != nil {
			return fmt.Errorf("load showtime %s: %w", st.ShowtimeID, err)
		}
		if err := showtime.ReserveSeats(st.Seats, now); err != nil {
			return err
		}
		price, err := showtime.PriceFor(len(st.Seats))
		if err != nil {
			return err
		}
		reservation, err := domain.NewReservation(s.d.Gen.NewID(), showtime.ID, st.CustomerID, st.Seats, price, now)
		if err != nil {
			return err
		}
		if err := s.d.Showtimes.Save(ctx, showtime); err != nil {
			return fmt.Errorf("save showtime: %w", err)
		}
		if err := s.d.Reservations.Save(ctx, reservation); err != nil {
			return fmt.Errorf("save reservation: %w", err)
		}

		reservationID = reservation.ID
		st.MovieTitle = showtime.MovieTitle
		st.ScreeningTime = showtime.ScreeningTime
		st.AuditoriumName = showtime.AuditoriumName
		st.TotalPriceCents = price.Amount()
		st.Currency = price.Currency()
		return nil
	})
	if err != nil {
		return saga.Failure(err.Error())
	}

	st.ReservationID = reservationID
	st.SeatsReserved = true
	return saga.Success(fmt.Sprintf("reserved %d seats", len(st.Seats)))
}

// Compensate expires a still-pending reservation and releases the seat hold.
// A confirmed reservation is left alone; the confirmation step reverts its
// own flag and the refund covers the money.
func (s *reserveSeatsStep) Compensate(ctx context.Context, st *State) saga.StepResult {
	now := s.d.Clock.Now()
	err := s.d.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if st.ReservationID != uuid.Nil {
			reservation, err := s.d.Reservations.FindByID(ctx, st.ReservationID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("load reservation %s: %w", st.ReservationID, err)
			}
			if err == nil && reservation.IsPending() {
				if err := reservation.Expire(now); err != nil {
					return err
				}
				if err := s.d.Reservations.Save(ctx, reservation); err != nil {
					return fmt.Errorf("save reservation: %w", err)
				}
			}
		}

		showtime, err := s.d.Showtimes.FindByIDForUpdate(ctx, st.ShowtimeID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("load showtime %s: %w", st.ShowtimeID, err)
		}
		showtime.ReleaseSeats(st.Seats)
		if err := s.d.Showtimes.Save(ctx, showtime); err != nil {
			return fmt.Errorf("save showtime: %w", err)
		}
		return nil
	})
	if err != nil {
		return saga.Failure(err.Error())
	}

	st.SeatsReserved = false
	return saga.Success("seats released")
}

func (s *reserveSeatsStep) ShouldCompensate(st *State) bool {
	return st.SeatsReserved && st.ReservationID != uuid.Nil
}
