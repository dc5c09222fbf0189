package saga

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StepLog is one audit entry for a step attempt. The step log travels inside
// the serialized saga payload; it is the saga's own diagnostic record, kept
// separate from the outbox fact stream for external consumers.
type StepLog struct {
	StepName  string    `json:"step_name"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the progress record every concrete saga state embeds.
type State struct {
	SagaID        uuid.UUID     `json:"saga_id"`
	SagaType      string        `json:"saga_type"`
	Status        Status        `json:"status"`
	CurrentStep   int           `json:"current_step"`
	TotalSteps    int           `json:"total_steps"`
	FailureReason string        `json:"failure_reason,omitempty"`
	RetryCount    int           `json:"retry_count"`
	CreatedAt     time.Time     `json:"created_at"`
	LastUpdatedAt time.Time     `json:"last_updated_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Timeout       time.Duration `json:"timeout"`
	StepLogs      []StepLog     `json:"step_logs,omitempty"`
}

// NewState initializes the embedded progress record.
func NewState(sagaID uuid.UUID, sagaType string, totalSteps int, timeout time.Duration, now time.Time) State {
	return State{
		SagaID:        sagaID,
		SagaType:      sagaType,
		Status:        StatusStarted,
		TotalSteps:    totalSteps,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Timeout:       timeout,
	}
}

// Base lets the engine reach the embedded record through the concrete state.
func (s *State) Base() *State {
	return s
}

// IsTimedOut reports whether the wall-clock deadline from creation passed.
func (s *State) IsTimedOut(now time.Time) bool {
	return now.Sub(s.CreatedAt) > s.Timeout
}

// IsCompleted reports whether the saga reached a terminal status. A
// completed state is immutable.
func (s *State) IsCompleted() bool {
	return s.Status.IsTerminal()
}

// LogStep appends an audit entry for a step attempt.
func (s *State) LogStep(stepName string, success bool, message string, now time.Time) {
	s.StepLogs = append(s.StepLogs, StepLog{
		StepName:  stepName,
		Success:   success,
		Message:   message,
		Timestamp: now,
	})
}

// transition enforces the status lattice.
func (s *State) transition(target Status) error {
	if s.Status == target {
		return nil
	}
	if !s.Status.CanTransitionTo(target) {
		return fmt.Errorf("saga %s: illegal status transition %s -> %s", s.SagaID, s.Status, target)
	}
	s.Status = target
	return nil
}
