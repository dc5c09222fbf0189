package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TicketStatus string

const (
	TicketStatusIssued    TicketStatus = "issued"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
)

// Ticket is the artifact handed to the customer once the purchase completes.
type Ticket struct {
	ID             uuid.UUID
	TicketNumber   string
	ReservationID  uuid.UUID
	PaymentID      uuid.UUID
	ShowtimeID     uuid.UUID
	CustomerID     uuid.UUID
	MovieTitle     string
	ScreeningTime  time.Time
	AuditoriumName string
	Seats          []Seat
	TotalPrice     Money
	QRPayload      string
	Status         TicketStatus
	IssuedAt       time.Time
	UsedAt         *time.Time

	events []Event
}

// IssueTicket materializes a ticket for a confirmed, paid reservation.
// The QR payload is a plain self-describing string; rendering it as an image
// is an external concern.
func IssueTicket(id uuid.UUID, ticketNumber string, reservationID, paymentID, showtimeID, customerID uuid.UUID,
	movieTitle string, screeningTime time.Time, auditoriumName string, seats []Seat, totalPrice Money, now time.Time) (*Ticket, error) {

	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: at least one seat is required", ErrValidation)
	}
	if movieTitle == "" {
		return nil, fmt.Errorf("%w: movie title is required", ErrValidation)
	}
	if ticketNumber == "" {
		return nil, fmt.Errorf("%w: ticket number is required", ErrValidation)
	}

	t := &Ticket{
		ID:             id,
		TicketNumber:   ticketNumber,
		ReservationID:  reservationID,
		PaymentID:      paymentID,
		ShowtimeID:     showtimeID,
		CustomerID:     customerID,
		MovieTitle:     movieTitle,
		ScreeningTime:  screeningTime,
		AuditoriumName: auditoriumName,
		Seats:          seats,
		TotalPrice:     totalPrice,
		QRPayload:      fmt.Sprintf("cinetix:ticket:%s:%s", id, ticketNumber),
		Status:         TicketStatusIssued,
		IssuedAt:       now,
	}
	t.raise(TicketIssued{
		TicketID:      id,
		TicketNumber:  ticketNumber,
		ReservationID: reservationID,
		PaymentID:     paymentID,
		ShowtimeID:    showtimeID,
		CustomerID:    customerID,
		MovieTitle:    movieTitle,
		ScreeningTime: screeningTime,
		Seats:         seats,
	})
	return t, nil
}

// Use marks the ticket as consumed at the door. A ticket expires three hours
// after the screening starts.
func (t *Ticket) Use(now time.Time) error {
	if t.Status != TicketStatusIssued {
		return fmt.Errorf("%w: ticket %s cannot be used from %s", ErrConflict, t.ID, t.Status)
	}
	if now.After(t.ScreeningTime.Add(3 * time.Hour)) {
		return fmt.Errorf("%w: ticket %s has expired, screening has ended", ErrConflict, t.ID)
	}
	t.Status = TicketStatusUsed
	t.UsedAt = &now
	return nil
}

// Cancel voids an issued ticket. Used by saga compensation.
func (t *Ticket) Cancel() error {
	if t.Status != TicketStatusIssued {
		return fmt.Errorf("%w: only issued tickets can be cancelled, ticket %s is %s", ErrConflict, t.ID, t.Status)
	}
	t.Status = TicketStatusCancelled
	t.raise(TicketCancelled{TicketID: t.ID, TicketNumber: t.TicketNumber})
	return nil
}

// MarkRefunded flags the ticket after its payment was refunded.
func (t *Ticket) MarkRefunded() error {
	if t.Status != TicketStatusIssued && t.Status != TicketStatusCancelled {
		return fmt.Errorf("%w: ticket %s cannot be refunded from %s", ErrConflict, t.ID, t.Status)
	}
	t.Status = TicketStatusRefunded
	return nil
}

func (t *Ticket) raise(e Event) {
	t.events = append(t.events, e)
}

// Events returns facts raised since the last ClearEvents.
func (t *Ticket) Events() []Event {
	return t.events
}

func (t *Ticket) ClearEvents() {
	t.events = nil
}
