// Package ticketpurchase is the saga that turns a purchase request into an
// issued ticket: reserve seats, charge the customer, confirm the
// reservation, issue the ticket, undoing in reverse on failure.
package ticketpurchase

import (
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/saga"
)

const (
	SagaType = "ticket_purchase"

	totalSteps = 4

	// DefaultTimeout bounds the whole purchase; it matches the seat hold so
	// a stuck saga cannot outlive the reservation it created.
	DefaultTimeout = 10 * time.Minute
)

// State carries everything a purchase needs to run, resume after a crash,
// and compensate. The done-flags are the idempotency markers steps check on
// re-execution.
type State struct {
	saga.State

	CustomerID     uuid.UUID            `json:"customer_id"`
	ShowtimeID     uuid.UUID            `json:"showtime_id"`
	Seats          []domain.Seat        `json:"seats"`
	PaymentMethod  domain.PaymentMethod `json:"payment_method"`
	CardNumber     string               `json:"card_number,omitempty"`
	CardHolderName string               `json:"card_holder_name,omitempty"`

	// Filled in by the steps as they run.
	MovieTitle      string    `json:"movie_title,omitempty"`
	ScreeningTime   time.Time `json:"screening_time,omitzero"`
	AuditoriumName  string    `json:"auditorium_name,omitempty"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Currency        string    `json:"currency,omitempty"`
	ReservationID   uuid.UUID `json:"reservation_id,omitzero"`
	PaymentID       uuid.UUID `json:"payment_id,omitzero"`
	TicketID        uuid.UUID `json:"ticket_id,omitzero"`
	TicketNumber    string    `json:"ticket_number,omitempty"`
	TransactionID   string    `json:"transaction_id,omitempty"`

	SeatsReserved        bool `json:"seats_reserved"`
	PaymentProcessed     bool `json:"payment_processed"`
	ReservationConfirmed bool `json:"reservation_confirmed"`
	TicketIssued         bool `json:"ticket_issued"`
}

// NewState starts a fresh purchase saga state.
func NewState(sagaID, customerID, showtimeID uuid.UUID, seats []domain.Seat,
	method domain.PaymentMethod, cardNumber, cardHolderName string, now time.Time) *State {

	return &State{
		State:          saga.NewState(sagaID, SagaType, totalSteps, DefaultTimeout, now),
		CustomerID:     customerID,
		ShowtimeID:     showtimeID,
		Seats:          seats,
		PaymentMethod:  method,
		CardNumber:     cardNumber,
		CardHolderName: cardHolderName,
	}
}

// Price returns the total computed by the seat reservation step.
func (s *State) Price() domain.Money {
	return domain.MustMoney(s.TotalPriceCents, s.Currency)
}

// CompensationSummary reports, per undo action, whether it took effect.
func (s *State) CompensationSummary() map[string]bool {
	return map[string]bool{
		"seats_released":   !s.SeatsReserved,
		"payment_refunded": !s.PaymentProcessed,
		"ticket_cancelled": !s.TicketIssued,
	}
}
