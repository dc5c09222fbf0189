// Package service exposes the application operations behind the transport.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/idgen"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
	"github.com/cinetix/cinetix/internal/saga/ticketpurchase"
)

// PurchaseRequest is one customer's attempt to buy seats for a showtime.
type PurchaseRequest struct {
	CustomerID     uuid.UUID
	ShowtimeID     uuid.UUID
	Seats          []domain.Seat
	PaymentMethod  domain.PaymentMethod
	CardNumber     string
	CardHolderName string
}

// PurchaseResult is returned when the whole saga completed.
type PurchaseResult struct {
	SagaID        uuid.UUID
	TicketID      uuid.UUID
	TicketNumber  string
	ReservationID uuid.UUID
	PaymentID     uuid.UUID
	MovieTitle    string
	ScreeningTime time.Time
	Seats         []domain.Seat
	TotalPrice    domain.Money
}

// PurchaseError carries the saga id of a failed purchase so the caller can
// inspect what happened and how far compensation got.
type PurchaseError struct {
	SagaID uuid.UUID
	Reason string
	Err    error
}

func (e *PurchaseError) Error() string {
	return fmt.Sprintf("purchase %s failed: %s", e.SagaID, e.Reason)
}

func (e *PurchaseError) Unwrap() error { return e.Err }

// SagaStatusView is the diagnostic projection of one saga's progress.
type SagaStatusView struct {
	SagaID        uuid.UUID      `json:"saga_id"`
	SagaType      string         `json:"saga_type"`
	Status        string         `json:"status"`
	CurrentStep   int            `json:"current_step"`
	TotalSteps    int            `json:"total_steps"`
	FailureReason string         `json:"failure_reason,omitempty"`
	RetryCount    int            `json:"retry_count"`
	TicketID      uuid.UUID      `json:"ticket_id,omitzero"`
	TicketNumber  string         `json:"ticket_number,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	StepLogs      []saga.StepLog `json:"step_logs,omitempty"`
}

// Ticketing runs purchases and answers saga status queries.
type Ticketing struct {
	engine *saga.Engine[*ticketpurchase.State]
	store  port.SagaStore
	facts  saga.FactRecorder
	gen    idgen.Generator
	clock  clock.Clock
}

func NewTicketing(engine *saga.Engine[*ticketpurchase.State], store port.SagaStore,
	facts saga.FactRecorder, gen idgen.Generator, clk clock.Clock) *Ticketing {

	return &Ticketing{engine: engine, store: store, facts: facts, gen: gen, clock: clk}
}

// Purchase drives the whole saga synchronously. On failure the returned
// error is a *PurchaseError whose saga id stays queryable via SagaStatus.
func (s *Ticketing) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	if err := validatePurchase(req); err != nil {
		return PurchaseResult{}, err
	}

	state := ticketpurchase.NewState(s.gen.NewID(), req.CustomerID, req.ShowtimeID,
		req.Seats, req.PaymentMethod, req.CardNumber, req.CardHolderName, s.clock.Now())

	rec, err := saga.Marshal(state, s.clock.Now())
	if err != nil {
		return PurchaseResult{}, err
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return PurchaseResult{}, fmt.Errorf("persist saga %s: %w", state.SagaID, err)
	}
	if err := s.facts.Record(ctx, saga.Started{SagaID: state.SagaID, SagaType: ticketpurchase.SagaType}); err != nil {
		return PurchaseResult{}, err
	}

	if err := s.engine.RunForward(ctx, state); err != nil {
		return PurchaseResult{}, &PurchaseError{
			SagaID: state.SagaID,
			Reason: state.FailureReason,
			Err:    err,
		}
	}

	return PurchaseResult{
		SagaID:        state.SagaID,
		TicketID:      state.TicketID,
		TicketNumber:  state.TicketNumber,
		ReservationID: state.ReservationID,
		PaymentID:     state.PaymentID,
		MovieTitle:    state.MovieTitle,
		ScreeningTime: state.ScreeningTime,
		Seats:         state.Seats,
		TotalPrice:    state.Price(),
	}, nil
}

// SagaStatus returns progress and audit trail for one saga id.
func (s *Ticketing) SagaStatus(ctx context.Context, sagaID uuid.UUID) (SagaStatusView, error) {
	rec, err := s.store.GetByID(ctx, sagaID)
	if err != nil {
		return SagaStatusView{}, err
	}
	state := &ticketpurchase.State{}
	if err := saga.Unmarshal(rec, state); err != nil {
		return SagaStatusView{}, err
	}
	return SagaStatusView{
		SagaID:        rec.SagaID,
		SagaType:      rec.SagaType,
		Status:        rec.Status,
		CurrentStep:   rec.CurrentStep,
		TotalSteps:    rec.TotalSteps,
		FailureReason: rec.FailureReason,
		RetryCount:    rec.RetryCount,
		TicketID:      state.TicketID,
		TicketNumber:  state.TicketNumber,
		CreatedAt:     rec.CreatedAt,
		LastUpdatedAt: rec.LastUpdatedAt,
		CompletedAt:   rec.CompletedAt,
		StepLogs:      state.StepLogs,
	}, nil
}

func validatePurchase(req PurchaseRequest) error {
	if req.CustomerID == uuid.Nil {
		return fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	}
	if req.ShowtimeID == uuid.Nil {
		return fmt.Errorf("%w: showtime id is required", domain.ErrValidation)
	}
	if len(req.Seats) == 0 {
		return fmt.Errorf("%w: at least one seat is required", domain.ErrValidation)
	}
	switch req.PaymentMethod {
	case domain.PaymentMethodCard, domain.PaymentMethodCash:
	default:
		return fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, req.PaymentMethod)
	}
	return nil
}
