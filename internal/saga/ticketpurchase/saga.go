package ticketpurchase

import (
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/idgen"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
)

// Deps are the collaborators shared by the purchase steps.
type Deps struct {
	Reservations port.ReservationRepository
	Payments     port.PaymentRepository
	Tickets      port.TicketRepository
	Showtimes    port.ShowtimeRepository
	Gateway      port.PaymentGateway
	Tx           port.TxManager
	Gen          idgen.Generator
	Clock        clock.Clock
}

// Steps returns the four purchase steps in declared order.
func Steps(d Deps) []saga.Step[*State] {
	return []saga.Step[*State]{
		&reserveSeatsStep{d: d},
		&processPaymentStep{d: d},
		&confirmReservationStep{d: d},
		&issueTicketStep{d: d},
	}
}

// NewEngine builds a saga engine wired with the purchase steps.
func NewEngine(d Deps, store port.SagaStore, facts saga.FactRecorder) *saga.Engine[*State] {
	return saga.NewEngine(Steps(d), store, facts, d.Clock)
}
