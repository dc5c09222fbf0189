package ticketpurchase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/saga"
)

// confirmReservationStep locks in the paid-for reservation.
type confirmReservationStep struct {
	d Deps
}

func (s *confirmReservationStep) Name() string { return "ConfirmReservation" }
func (s *confirmReservationStep) Order() int   { return 3 }

func (s *confirmReservationStep) Execute(ctx context.Context, st *State) saga.StepResult {
	if st.ReservationConfirmed {
		return saga.Success("reservation already confirmed")
	}
	if st.ReservationID == uuid.Nil {
		return saga.Failure("reservation id is required")
	}
	if st.PaymentID == uuid.Nil {
		return saga.Failure("payment id is required")
	}

	reservation, err := s.d.Reservations.FindByID(ctx, st.ReservationID)
	if err != nil {
		return saga.Failure(fmt.Sprintf("load reservation %s: %v", st.ReservationID, err))
	}
	if reservation.Status == domain.ReservationStatusConfirmed {
		// A previous run confirmed it and crashed before checkpointing.
		st.ReservationConfirmed = true
		return saga.Success("reservation already confirmed")
	}

	if err := reservation.Confirm(s.d.Clock.Now()); err != nil {
		return saga.Failure(err.Error())
	}
	if err := s.d.Reservations.Save(ctx, reservation); err != nil {
		return saga.Failure(fmt.Sprintf("save reservation: %v", err))
	}

	st.ReservationConfirmed = true
	return saga.Success("reservation confirmed")
}

// Compensate only reverts the flag: the seat release belongs to the
// reservation step and the money to the payment step.
func (s *confirmReservationStep) Compensate(_ context.Context, st *State) saga.StepResult {
	st.ReservationConfirmed = false
	return saga.Success("confirmation reverted")
}

func (s *confirmReservationStep) ShouldCompensate(st *State) bool {
	return st.ReservationConfirmed
}
