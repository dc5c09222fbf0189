package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// Breaker implements the circuit breaker pattern. It guards calls to an
// external collaborator (the payment gateway) so a failing dependency is
// not hammered while it recovers.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	threshold   int
	timeout     time.Duration
	halfOpenMax int
	lastFailure time.Time
	halfOpenCnt int
}

// NewBreaker creates a new circuit breaker.
func NewBreaker(threshold int, timeout time.Duration, halfOpenMax int) *Breaker {
	return &Breaker{
		state:       Closed,
		threshold:   threshold,
		timeout:     timeout,
		halfOpenMax: halfOpenMax,
	}
}

// Do runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Do(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Allow checks if the request should be allowed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open {
		if time.Since(b.lastFailure) > b.timeout {
			b.state = HalfOpen
			b.halfOpenCnt = 0
			return true
		}
		return false
	}

	if b.state == HalfOpen {
		if b.halfOpenCnt >= b.halfOpenMax {
			return false
		}
		b.halfOpenCnt++
		return true
	}

	return true
}

// RecordSuccess records a successful request.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Closed
		b.failures = 0
	} else if b.state == Closed {
		b.failures = 0
	}
}

// RecordFailure records a failed request.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == Closed {
		if b.failures >= b.threshold {
			b.state = Open
		}
	} else if b.state == HalfOpen {
		b.state = Open
	}
}

// State returns the current circuit breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
