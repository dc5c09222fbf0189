package saga

import "context"

// StepResult is the success/failure outcome of one step attempt. It carries
// text only; all side effects happen inside Execute/Compensate against the
// step's injected collaborators.
type StepResult struct {
	ok      bool
	message string
	err     string
}

// Success returns a successful result with a human-readable message.
func Success(message string) StepResult {
	return StepResult{ok: true, message: message}
}

// Failure returns a failed result with an error description.
func Failure(err string) StepResult {
	return StepResult{err: err}
}

func (r StepResult) IsSuccess() bool { return r.ok }
func (r StepResult) IsFailure() bool { return !r.ok }
func (r StepResult) Message() string { return r.message }
func (r StepResult) Error() string   { return r.err }

// Text returns the message on success, the error on failure.
func (r StepResult) Text() string {
	if r.ok {
		return r.message
	}
	return r.err
}

// Stateful is implemented by every concrete saga state by embedding State.
type Stateful interface {
	Base() *State
}

// Step is one unit of work in a saga. Steps are idempotent with respect to
// re-execution on resume: Execute must check the state's own flags before
// acting rather than trusting the step index.
type Step[S Stateful] interface {
	Name() string
	Order() int
	Execute(ctx context.Context, state S) StepResult
	Compensate(ctx context.Context, state S) StepResult
	ShouldCompensate(state S) bool
}
