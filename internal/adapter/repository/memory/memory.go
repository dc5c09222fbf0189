// Package memory holds in-process adapter implementations with the same
// contracts as the postgres ones: Save records the aggregate's pending facts
// through the recorder and clears them, reads return copies. Used by tests
// and local runs without a database.
package memory

import (
	"context"
	"sync"

	"github.com/cinetix/cinetix/internal/domain"
)

// FactRecorder matches fact.Recorder; kept as a local interface so the
// package works with any outbox wiring.
type FactRecorder interface {
	Record(ctx context.Context, events ...domain.Event) error
}

// Tx serializes transactions with one mutex, the in-process stand-in for
// the database's row locks: a read-modify-save inside WithinTx cannot
// interleave with another transaction's, which is what FindByIDForUpdate
// relies on here.
type Tx struct {
	mu sync.Mutex
}

func NewTx() *Tx {
	return &Tx{}
}

func (t *Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
