package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusDeclined   PaymentStatus = "declined"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodCash PaymentMethod = "cash"
)

// Payment tracks one charge attempt for a reservation.
type Payment struct {
	ID            uuid.UUID
	ReservationID uuid.UUID
	CustomerID    uuid.UUID
	Amount        Money
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	FailureReason string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	RefundedAt    *time.Time

	events []Event
}

// NewPayment creates a pending payment for a positive amount.
func NewPayment(id, reservationID, customerID uuid.UUID, amount Money, method PaymentMethod, now time.Time) (*Payment, error) {
	if reservationID == uuid.Nil {
		return nil, fmt.Errorf("%w: reservation id is required", ErrValidation)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return &Payment{
		ID:            id,
		ReservationID: reservationID,
		CustomerID:    customerID,
		Amount:        amount,
		Method:        method,
		Status:        PaymentStatusPending,
		CreatedAt:     now,
	}, nil
}

// StartProcessing marks the payment as handed to the gateway.
func (p *Payment) StartProcessing() error {
	if p.Status != PaymentStatusPending {
		return fmt.Errorf("%w: payment %s can only start processing from pending, was %s", ErrConflict, p.ID, p.Status)
	}
	p.Status = PaymentStatusProcessing
	return nil
}

// Complete records a successful gateway charge.
func (p *Payment) Complete(transactionID string, now time.Time) error {
	if p.Status != PaymentStatusProcessing {
		return fmt.Errorf("%w: payment %s can only complete from processing, was %s", ErrConflict, p.ID, p.Status)
	}
	if transactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	p.Status = PaymentStatusCompleted
	p.TransactionID = transactionID
	p.ProcessedAt = &now
	p.raise(PaymentCompleted{
		PaymentID:     p.ID,
		ReservationID: p.ReservationID,
		TransactionID: transactionID,
		AmountCents:   p.Amount.Amount(),
		Currency:      p.Amount.Currency(),
	})
	return nil
}

// Decline records a gateway refusal.
func (p *Payment) Decline(reason string, now time.Time) error {
	if p.Status != PaymentStatusProcessing {
		return fmt.Errorf("%w: payment %s can only be declined from processing, was %s", ErrConflict, p.ID, p.Status)
	}
	p.Status = PaymentStatusDeclined
	p.FailureReason = reason
	p.ProcessedAt = &now
	p.raise(PaymentDeclined{PaymentID: p.ID, Reason: reason})
	return nil
}

// Fail records an infrastructure failure before or during processing.
func (p *Payment) Fail(reason string) error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing {
		return fmt.Errorf("%w: payment %s cannot fail from %s", ErrConflict, p.ID, p.Status)
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	return nil
}

// CanBeRefunded reports whether a refund attempt makes sense.
func (p *Payment) CanBeRefunded() bool {
	return p.Status == PaymentStatusCompleted
}

// Refund marks the payment refunded. The gateway refund is best-effort; the
// local state flips regardless so compensation converges.
func (p *Payment) Refund(reason string, now time.Time) error {
	if !p.CanBeRefunded() {
		return fmt.Errorf("%w: payment %s cannot be refunded from %s", ErrConflict, p.ID, p.Status)
	}
	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	p.raise(PaymentRefunded{PaymentID: p.ID, AmountCents: p.Amount.Amount(), Reason: reason})
	return nil
}

func (p *Payment) raise(e Event) {
	p.events = append(p.events, e)
}

// Events returns facts raised since the last ClearEvents.
func (p *Payment) Events() []Event {
	return p.events
}

func (p *Payment) ClearEvents() {
	p.events = nil
}
