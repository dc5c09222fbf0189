package saga

import "github.com/google/uuid"

// Saga lifecycle facts. These share the outbox with aggregate facts but form
// a logically distinct stream (aggregate type "saga"); the per-step audit
// log in State is not published here.

type Started struct {
	SagaID   uuid.UUID `json:"saga_id"`
	SagaType string    `json:"saga_type"`
}

func (e Started) EventType() string      { return "saga.started" }
func (e Started) AggregateType() string  { return "saga" }
func (e Started) AggregateID() uuid.UUID { return e.SagaID }

type StepCompleted struct {
	SagaID   uuid.UUID `json:"saga_id"`
	SagaType string    `json:"saga_type"`
	StepName string    `json:"step_name"`
	Order    int       `json:"order"`
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
}

func (e StepCompleted) EventType() string      { return "saga.step_completed" }
func (e StepCompleted) AggregateType() string  { return "saga" }
func (e StepCompleted) AggregateID() uuid.UUID { return e.SagaID }

type Completed struct {
	SagaID   uuid.UUID `json:"saga_id"`
	SagaType string    `json:"saga_type"`
}

func (e Completed) EventType() string      { return "saga.completed" }
func (e Completed) AggregateType() string  { return "saga" }
func (e Completed) AggregateID() uuid.UUID { return e.SagaID }

type CompensationStarted struct {
	SagaID   uuid.UUID `json:"saga_id"`
	SagaType string    `json:"saga_type"`
	Reason   string    `json:"reason"`
}

func (e CompensationStarted) EventType() string      { return "saga.compensation_started" }
func (e CompensationStarted) AggregateType() string  { return "saga" }
func (e CompensationStarted) AggregateID() uuid.UUID { return e.SagaID }

type Compensated struct {
	SagaID   uuid.UUID       `json:"saga_id"`
	SagaType string          `json:"saga_type"`
	Summary  map[string]bool `json:"summary,omitempty"`
}

func (e Compensated) EventType() string      { return "saga.compensated" }
func (e Compensated) AggregateType() string  { return "saga" }
func (e Compensated) AggregateID() uuid.UUID { return e.SagaID }
