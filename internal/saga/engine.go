package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/logger"
	"github.com/cinetix/cinetix/internal/port"
)

// FactRecorder records saga lifecycle facts for relay to the broker.
type FactRecorder interface {
	Record(ctx context.Context, events ...domain.Event) error
}

// Summarizer is optionally implemented by a concrete state to enrich the
// compensated fact with which undo actions took effect.
type Summarizer interface {
	CompensationSummary() map[string]bool
}

// Engine drives a saga's steps in order, persisting progress after every
// step so a crashed run can be resumed, and runs compensations in reverse
// order when a step fails or the saga times out. The engine never retries a
// step itself; retry happens only through external resumption of a
// persisted, non-terminal state.
type Engine[S Stateful] struct {
	steps []Step[S]
	store port.SagaStore
	facts FactRecorder
	clock clock.Clock
}

// NewEngine orders the steps by their declared position once, up front.
func NewEngine[S Stateful](steps []Step[S], store port.SagaStore, facts FactRecorder, clk clock.Clock) *Engine[S] {
	ordered := make([]Step[S], len(steps))
	copy(ordered, steps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order() < ordered[j].Order() })
	return &Engine[S]{steps: ordered, store: store, facts: facts, clock: clk}
}

// RunForward executes the remaining steps. On the first failure it records
// the reason, compensates, and returns an error; the persisted state remains
// available for diagnostics by saga id.
func (e *Engine[S]) RunForward(ctx context.Context, state S) error {
	base := state.Base()
	if base.IsCompleted() {
		return fmt.Errorf("saga %s: already in terminal status %s", base.SagaID, base.Status)
	}
	log := logger.From(ctx).With("saga_id", base.SagaID, "saga_type", base.SagaType)

	if err := base.transition(StatusRunning); err != nil {
		return err
	}

	for _, step := range e.steps {
		if base.IsTimedOut(e.clock.Now()) {
			log.Warn("saga timed out before step", "step", step.Name())
			_ = base.transition(StatusTimedOut)
			e.compensate(ctx, state, "saga timed out")
			return fmt.Errorf("saga %s: timed out", base.SagaID)
		}

		log.Info("executing step", "step", step.Name(), "order", step.Order(), "total", base.TotalSteps)
		res := e.runStep(ctx, step, state)

		base.LogStep(step.Name(), res.IsSuccess(), res.Text(), e.clock.Now())
		e.recordFact(ctx, StepCompleted{
			SagaID:   base.SagaID,
			SagaType: base.SagaType,
			StepName: step.Name(),
			Order:    step.Order(),
			Success:  res.IsSuccess(),
			Message:  res.Text(),
		})

		if res.IsFailure() {
			log.Warn("step failed", "step", step.Name(), "error", res.Error())
			base.FailureReason = res.Error()
			e.compensate(ctx, state, res.Error())
			return fmt.Errorf("saga %s: step %s failed: %s", base.SagaID, step.Name(), res.Error())
		}

		base.CurrentStep = step.Order()
		if err := e.persist(ctx, state); err != nil {
			// The step's effects are durable; a failed checkpoint is left to
			// the recovery sweeper, which resumes from the idempotent steps.
			log.Error("checkpoint persist failed", "step", step.Name(), "error", err)
			return fmt.Errorf("saga %s: persist after %s: %w", base.SagaID, step.Name(), err)
		}
	}

	if err := base.transition(StatusCompleted); err != nil {
		return err
	}
	now := e.clock.Now()
	base.CompletedAt = &now
	if err := e.persist(ctx, state); err != nil {
		return fmt.Errorf("saga %s: persist completion: %w", base.SagaID, err)
	}
	e.recordFact(ctx, Completed{SagaID: base.SagaID, SagaType: base.SagaType})
	log.Info("saga completed")
	return nil
}

// Resume re-enters a persisted saga: timed-out states are compensated,
// anything else runs forward again. Steps self-determine what remains to do
// by inspecting state flags, so re-execution is safe.
func (e *Engine[S]) Resume(ctx context.Context, state S) error {
	base := state.Base()
	if base.IsCompleted() {
		return nil
	}
	base.RetryCount++
	if base.IsTimedOut(e.clock.Now()) {
		_ = base.transition(StatusTimedOut)
		e.compensate(ctx, state, "saga timed out")
		return fmt.Errorf("saga %s: timed out", base.SagaID)
	}
	return e.RunForward(ctx, state)
}

// RunCompensation undoes completed steps in descending order. Exported for
// the recovery sweeper, which compensates timed-out sagas directly.
func (e *Engine[S]) RunCompensation(ctx context.Context, state S, reason string) {
	e.compensate(ctx, state, reason)
}

func (e *Engine[S]) compensate(ctx context.Context, state S, reason string) {
	base := state.Base()
	log := logger.From(ctx).With("saga_id", base.SagaID, "saga_type", base.SagaType)

	if err := base.transition(StatusCompensating); err != nil {
		log.Error("cannot enter compensation", "error", err)
		return
	}
	if base.FailureReason == "" {
		base.FailureReason = reason
	}
	e.recordFact(ctx, CompensationStarted{SagaID: base.SagaID, SagaType: base.SagaType, Reason: reason})

	// Best effort: a failing compensation is logged and the sweep continues,
	// so every eligible step gets its attempt.
	for i := len(e.steps) - 1; i >= 0; i-- {
		step := e.steps[i]
		if !step.ShouldCompensate(state) {
			continue
		}
		log.Info("compensating step", "step", step.Name())
		res := e.runCompensate(ctx, step, state)
		base.LogStep("compensate:"+step.Name(), res.IsSuccess(), res.Text(), e.clock.Now())
		if res.IsFailure() {
			log.Error("compensation failed", "step", step.Name(), "error", res.Error())
		}
	}

	_ = base.transition(StatusCompensated)
	now := e.clock.Now()
	base.CompletedAt = &now
	if err := e.persist(ctx, state); err != nil {
		log.Error("persist compensated state failed", "error", err)
	}

	compensated := Compensated{SagaID: base.SagaID, SagaType: base.SagaType}
	if s, ok := any(state).(Summarizer); ok {
		compensated.Summary = s.CompensationSummary()
	}
	e.recordFact(ctx, compensated)
}

// runStep converts a panicking step into a failed result so the engine loop
// never crashes the host process.
func (e *Engine[S]) runStep(ctx context.Context, step Step[S], state S) (res StepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failure(fmt.Sprintf("step %s panicked: %v", step.Name(), r))
		}
	}()
	return step.Execute(ctx, state)
}

func (e *Engine[S]) runCompensate(ctx context.Context, step Step[S], state S) (res StepResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Failure(fmt.Sprintf("compensation %s panicked: %v", step.Name(), r))
		}
	}()
	return step.Compensate(ctx, state)
}

// persist checkpoints the full state, payload included, through the store.
func (e *Engine[S]) persist(ctx context.Context, state S) error {
	rec, err := Marshal(state, e.clock.Now())
	if err != nil {
		return err
	}
	return e.store.Update(ctx, rec)
}

// recordFact is best-effort: losing a lifecycle notification must not fail
// the business transaction it describes.
func (e *Engine[S]) recordFact(ctx context.Context, event domain.Event) {
	if err := e.facts.Record(ctx, event); err != nil {
		logger.From(ctx).Error("record saga fact failed", "event", event.EventType(), "error", err)
	}
}

// Marshal serializes a state into its storable record form.
func Marshal[S Stateful](state S, now time.Time) (port.SagaRecord, error) {
	base := state.Base()
	base.LastUpdatedAt = now
	data, err := json.Marshal(state)
	if err != nil {
		return port.SagaRecord{}, fmt.Errorf("marshal saga %s: %w", base.SagaID, err)
	}
	return port.SagaRecord{
		SagaID:        base.SagaID,
		SagaType:      base.SagaType,
		Status:        string(base.Status),
		CurrentStep:   base.CurrentStep,
		TotalSteps:    base.TotalSteps,
		FailureReason: base.FailureReason,
		RetryCount:    base.RetryCount,
		CreatedAt:     base.CreatedAt,
		LastUpdatedAt: base.LastUpdatedAt,
		CompletedAt:   base.CompletedAt,
		Data:          data,
	}, nil
}

// Unmarshal restores a concrete state from its stored record.
func Unmarshal[S Stateful](rec port.SagaRecord, state S) error {
	if err := json.Unmarshal(rec.Data, state); err != nil {
		return fmt.Errorf("unmarshal saga %s: %w", rec.SagaID, err)
	}
	return nil
}
