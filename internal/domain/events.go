package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain fact raised by an aggregate transition. Events are
// recorded in the outbox in the same transaction as the aggregate write and
// relayed to the broker asynchronously.
type Event interface {
	EventType() string
	AggregateType() string
	AggregateID() uuid.UUID
}

type ReservationCreated struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ShowtimeID    uuid.UUID `json:"showtime_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	Seats         []Seat    `json:"seats"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (e ReservationCreated) EventType() string      { return "reservation.created" }
func (e ReservationCreated) AggregateType() string  { return "reservation" }
func (e ReservationCreated) AggregateID() uuid.UUID { return e.ReservationID }

type ReservationConfirmed struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ShowtimeID    uuid.UUID `json:"showtime_id"`
}

func (e ReservationConfirmed) EventType() string      { return "reservation.confirmed" }
func (e ReservationConfirmed) AggregateType() string  { return "reservation" }
func (e ReservationConfirmed) AggregateID() uuid.UUID { return e.ReservationID }

type ReservationExpired struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ShowtimeID    uuid.UUID `json:"showtime_id"`
	Seats         []Seat    `json:"seats"`
}

func (e ReservationExpired) EventType() string      { return "reservation.expired" }
func (e ReservationExpired) AggregateType() string  { return "reservation" }
func (e ReservationExpired) AggregateID() uuid.UUID { return e.ReservationID }

type PaymentCompleted struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	ReservationID uuid.UUID `json:"reservation_id"`
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
}

func (e PaymentCompleted) EventType() string      { return "payment.completed" }
func (e PaymentCompleted) AggregateType() string  { return "payment" }
func (e PaymentCompleted) AggregateID() uuid.UUID { return e.PaymentID }

type PaymentDeclined struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

func (e PaymentDeclined) EventType() string      { return "payment.declined" }
func (e PaymentDeclined) AggregateType() string  { return "payment" }
func (e PaymentDeclined) AggregateID() uuid.UUID { return e.PaymentID }

type PaymentRefunded struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
}

func (e PaymentRefunded) EventType() string      { return "payment.refunded" }
func (e PaymentRefunded) AggregateType() string  { return "payment" }
func (e PaymentRefunded) AggregateID() uuid.UUID { return e.PaymentID }

type TicketIssued struct {
	TicketID      uuid.UUID `json:"ticket_id"`
	TicketNumber  string    `json:"ticket_number"`
	ReservationID uuid.UUID `json:"reservation_id"`
	PaymentID     uuid.UUID `json:"payment_id"`
	ShowtimeID    uuid.UUID `json:"showtime_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	MovieTitle    string    `json:"movie_title"`
	ScreeningTime time.Time `json:"screening_time"`
	Seats         []Seat    `json:"seats"`
}

func (e TicketIssued) EventType() string      { return "ticket.issued" }
func (e TicketIssued) AggregateType() string  { return "ticket" }
func (e TicketIssued) AggregateID() uuid.UUID { return e.TicketID }

type TicketCancelled struct {
	TicketID     uuid.UUID `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
}

func (e TicketCancelled) EventType() string      { return "ticket.cancelled" }
func (e TicketCancelled) AggregateType() string  { return "ticket" }
func (e TicketCancelled) AggregateID() uuid.UUID { return e.TicketID }
