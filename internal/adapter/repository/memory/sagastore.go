package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
)

var _ port.SagaStore = (*SagaStore)(nil)

// SagaStore keeps saga records in a map, with the same lease fencing rules
// as the postgres store.
type SagaStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]port.SagaRecord
}

func NewSagaStore() *SagaStore {
	return &SagaStore{records: make(map[uuid.UUID]port.SagaRecord)}
}

func (s *SagaStore) GetByID(_ context.Context, sagaID uuid.UUID) (port.SagaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sagaID]
	if !ok {
		return port.SagaRecord{}, fmt.Errorf("saga %s: %w", sagaID, domain.ErrNotFound)
	}
	return rec, nil
}

func (s *SagaStore) ListIncomplete(_ context.Context, sagaType string) ([]port.SagaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []port.SagaRecord
	for _, rec := range s.records {
		if rec.SagaType == sagaType && !saga.Status(rec.Status).IsTerminal() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *SagaStore) ListTimedOut(_ context.Context, sagaType string, cutoff time.Time) ([]port.SagaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []port.SagaRecord
	for _, rec := range s.records {
		if rec.SagaType == sagaType && !saga.Status(rec.Status).IsTerminal() && rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *SagaStore) Save(ctx context.Context, rec port.SagaRecord) error {
	return s.Update(ctx, rec)
}

func (s *SagaStore) Update(_ context.Context, rec port.SagaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Keep lease columns; the engine's record does not carry them.
	if existing, ok := s.records[rec.SagaID]; ok {
		rec.Owner = existing.Owner
		rec.LeaseExpiresAt = existing.LeaseExpiresAt
	}
	s.records[rec.SagaID] = rec
	return nil
}

func (s *SagaStore) AcquireLease(_ context.Context, sagaID uuid.UUID, owner string, ttl time.Duration, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sagaID]
	if !ok {
		return false, fmt.Errorf("saga %s: %w", sagaID, domain.ErrNotFound)
	}
	held := rec.Owner != "" && rec.Owner != owner &&
		rec.LeaseExpiresAt != nil && rec.LeaseExpiresAt.After(now)
	if held {
		return false, nil
	}
	exp := now.Add(ttl)
	rec.Owner = owner
	rec.LeaseExpiresAt = &exp
	s.records[sagaID] = rec
	return true, nil
}
