package ticketpurchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/saga"
)

// issueTicketStep materializes the ticket for the confirmed, paid
// reservation.
type issueTicketStep struct {
	d Deps
}

func (s *issueTicketStep) Name() string { return "IssueTicket" }
func (s *issueTicketStep) Order() int   { return 4 }

func (s *issueTicketStep) Execute(ctx context.Context, st *State) saga.StepResult {
	if st.TicketIssued && st.TicketID != uuid.Nil {
		return saga.Success("ticket already issued")
	}
	if st.ReservationID == uuid.Nil || st.PaymentID == uuid.Nil || !st.ReservationConfirmed {
		return saga.Failure("prerequisites not met: need confirmed reservation and payment")
	}

	number := s.d.Gen.TicketNumber()
	ticket, err := domain.IssueTicket(s.d.Gen.NewID(), number,
		st.ReservationID, st.PaymentID, st.ShowtimeID, st.CustomerID,
		st.MovieTitle, st.ScreeningTime, st.AuditoriumName, st.Seats, st.Price(), s.d.Clock.Now())
	if err != nil {
		return saga.Failure(err.Error())
	}
	if err := s.d.Tickets.Save(ctx, ticket); err != nil {
		return saga.Failure(fmt.Sprintf("save ticket: %v", err))
	}

	st.TicketID = ticket.ID
	st.TicketNumber = ticket.TicketNumber
	st.TicketIssued = true
	return saga.Success("ticket issued: " + ticket.TicketNumber)
}

func (s *issueTicketStep) Compensate(ctx context.Context, st *State) saga.StepResult {
	if st.TicketID == uuid.Nil {
		return saga.Success("no ticket to cancel")
	}

	ticket, err := s.d.Tickets.FindByID(ctx, st.TicketID)
	if errors.Is(err, domain.ErrNotFound) {
		st.TicketIssued = false
		return saga.Success("ticket not found")
	}
	if err != nil {
		return saga.Failure(fmt.Sprintf("load ticket %s: %v", st.TicketID, err))
	}

	if err := ticket.Cancel(); err != nil {
		return saga.Failure(err.Error())
	}
	if err := s.d.Tickets.Save(ctx, ticket); err != nil {
		return saga.Failure(fmt.Sprintf("save ticket: %v", err))
	}

	st.TicketIssued = false
	return saga.Success("ticket cancelled")
}

func (s *issueTicketStep) ShouldCompensate(st *State) bool {
	return st.TicketIssued && st.TicketID != uuid.Nil
}
