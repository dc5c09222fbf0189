package saga

// Status is the saga lifecycle position. It only moves forward through the
// lattice Started → Running → (Completed | Compensating → Compensated |
// TimedOut | Failed); a timed-out saga may still enter compensation.
type Status string

const (
	StatusStarted      Status = "started"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusCompensating Status = "compensating"
	StatusCompensated  Status = "compensated"
	StatusTimedOut     Status = "timed_out"
	StatusFailed       Status = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompensated, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the move is legal on the lattice.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusStarted:
		return target == StatusRunning || target == StatusTimedOut || target == StatusCompensating
	case StatusRunning:
		return target == StatusRunning ||
			target == StatusCompleted ||
			target == StatusCompensating ||
			target == StatusTimedOut ||
			target == StatusFailed
	case StatusTimedOut:
		return target == StatusCompensating || target == StatusFailed
	case StatusCompensating:
		return target == StatusCompensated || target == StatusFailed
	default:
		return false
	}
}
