package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces entity ids and human-readable ticket numbers.
// Injected rather than called ambiently so tests can fix the output.
type Generator interface {
	NewID() uuid.UUID
	TicketNumber() string
}

// Random is the production generator.
type Random struct{}

func (Random) NewID() uuid.UUID {
	return uuid.New()
}

// TicketNumber returns a short human-readable number like "TKT-1A2B3C4D".
func (Random) TicketNumber() string {
	id := uuid.New()
	return fmt.Sprintf("TKT-%X", id[:4])
}

// Seq hands out deterministic ids derived from a counter. Test helper;
// fixtures share one instance across concurrently running sagas.
type Seq struct {
	n atomic.Uint32
}

func (s *Seq) NewID() uuid.UUID {
	n := s.n.Add(1)
	var id uuid.UUID
	id[0] = byte(n >> 24)
	id[1] = byte(n >> 16)
	id[2] = byte(n >> 8)
	id[3] = byte(n)
	id[6] = 0x40 // version 4
	id[8] = 0x80 // RFC 4122 variant
	return id
}

func (s *Seq) TicketNumber() string {
	return fmt.Sprintf("TKT-%08X", s.n.Add(1))
}
