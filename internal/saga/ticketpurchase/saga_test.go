package ticketpurchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetix/cinetix/internal/adapter/repository/memory"
	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/fact"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/pkg/idgen"
	"github.com/cinetix/cinetix/internal/port"
	"github.com/cinetix/cinetix/internal/saga"
)

// scriptedGateway lets a test dictate the charge outcome and records refunds.
type scriptedGateway struct {
	declineReason string
	chargeErr     error
	charges       int
	refunded      []string
}

func (g *scriptedGateway) Charge(_ context.Context, _ port.ChargeRequest) (port.ChargeResult, error) {
	g.charges++
	if g.chargeErr != nil {
		return port.ChargeResult{}, g.chargeErr
	}
	if g.declineReason != "" {
		return port.ChargeResult{Approved: false, Reason: g.declineReason}, nil
	}
	return port.ChargeResult{Approved: true, TransactionID: fmt.Sprintf("txn_%d", g.charges)}, nil
}

func (g *scriptedGateway) Refund(_ context.Context, transactionID string, _ domain.Money) (port.RefundResult, error) {
	g.refunded = append(g.refunded, transactionID)
	return port.RefundResult{Refunded: true, RefundID: "rfn_" + transactionID}, nil
}

type fixture struct {
	clk          *clock.Fake
	gen          *idgen.Seq
	outbox       *memory.Outbox
	reservations *memory.ReservationRepo
	payments     *memory.PaymentRepo
	tickets      *memory.TicketRepo
	showtimes    *memory.ShowtimeRepo
	store        *memory.SagaStore
	gateway      *scriptedGateway
	deps         Deps

	showtimeID uuid.UUID
	customerID uuid.UUID
	seats      []domain.Seat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	gen := &idgen.Seq{}
	outbox := memory.NewOutbox()
	recorder := fact.NewRecorder(outbox, gen, clk)

	f := &fixture{
		clk:          clk,
		gen:          gen,
		outbox:       outbox,
		reservations: memory.NewReservationRepo(recorder),
		payments:     memory.NewPaymentRepo(recorder),
		tickets:      memory.NewTicketRepo(recorder),
		showtimes:    memory.NewShowtimeRepo(),
		store:        memory.NewSagaStore(),
		gateway:      &scriptedGateway{},
		customerID:   uuid.New(),
	}
	f.deps = Deps{
		Reservations: f.reservations,
		Payments:     f.payments,
		Tickets:      f.tickets,
		Showtimes:    f.showtimes,
		Gateway:      f.gateway,
		Tx:           memory.NewTx(),
		Gen:          gen,
		Clock:        clk,
	}

	f.showtimeID = gen.NewID()
	showtime, err := domain.NewShowtime(f.showtimeID, "Dune: Part Three",
		clk.Now().Add(4*time.Hour), uuid.New(), "IMAX One",
		domain.MustMoney(1250, "USD"), clk.Now())
	require.NoError(t, err)
	require.NoError(t, f.showtimes.Save(context.Background(), showtime))

	seatA, err := domain.NewSeat(3, 7)
	require.NoError(t, err)
	seatB, err := domain.NewSeat(3, 8)
	require.NoError(t, err)
	f.seats = []domain.Seat{seatA, seatB}

	return f
}

func (f *fixture) engine(facts saga.FactRecorder) *saga.Engine[*State] {
	return saga.NewEngine(Steps(f.deps), f.store, facts, f.clk)
}

func (f *fixture) newState() *State {
	return NewState(f.gen.NewID(), f.customerID, f.showtimeID, f.seats,
		domain.PaymentMethodCard, "4111111111111111", "Ada Lovelace", f.clk.Now())
}

// recorder for saga lifecycle facts, kept out of the outbox to make outbox
// assertions about aggregate facts exact.
type nopRecorder struct{}

func (nopRecorder) Record(context.Context, ...domain.Event) error { return nil }

func claimedEventTypes(t *testing.T, f *fixture) []string {
	t.Helper()
	rows, err := f.outbox.ClaimBatch(context.Background(), 100, f.clk.Now())
	require.NoError(t, err)
	types := make([]string, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.EventType)
	}
	return types
}

func TestPurchaseHappyPath(t *testing.T) {
	f := newFixture(t)
	eng := f.engine(nopRecorder{})
	ctx := context.Background()

	state := f.newState()
	require.NoError(t, eng.RunForward(ctx, state))

	assert.Equal(t, saga.StatusCompleted, state.Status)
	assert.True(t, state.SeatsReserved)
	assert.True(t, state.PaymentProcessed)
	assert.True(t, state.ReservationConfirmed)
	assert.True(t, state.TicketIssued)
	assert.Equal(t, int64(2500), state.TotalPriceCents)
	assert.Equal(t, "Dune: Part Three", state.MovieTitle)
	assert.NotEmpty(t, state.TicketNumber)

	reservation, err := f.reservations.FindByID(ctx, state.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, reservation.Status)

	payment, err := f.payments.FindByID(ctx, state.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, state.TransactionID, payment.TransactionID)

	ticket, err := f.tickets.FindByID(ctx, state.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusIssued, ticket.Status)
	assert.Equal(t, f.seats, ticket.Seats)

	showtime, err := f.showtimes.FindByID(ctx, f.showtimeID)
	require.NoError(t, err)
	assert.False(t, showtime.SeatsAvailable(f.seats))

	assert.ElementsMatch(t, []string{
		"reservation.created", "payment.completed", "reservation.confirmed", "ticket.issued",
	}, claimedEventTypes(t, f))
}

func TestPurchaseSeatConflictFails(t *testing.T) {
	f := newFixture(t)
	eng := f.engine(nopRecorder{})
	ctx := context.Background()

	require.NoError(t, eng.RunForward(ctx, f.newState()))

	// Second purchase for the same seats must fail before charging anyone.
	second := f.newState()
	err := eng.RunForward(ctx, second)
	require.Error(t, err)
	assert.Equal(t, saga.StatusCompensated, second.Status)
	assert.False(t, second.SeatsReserved)
	assert.Equal(t, 1, f.gateway.charges)
}

func TestPurchaseDeclineReleasesSeats(t *testing.T) {
	f := newFixture(t)
	f.gateway.declineReason = "insufficient funds"
	eng := f.engine(nopRecorder{})
	ctx := context.Background()

	state := f.newState()
	err := eng.RunForward(ctx, state)
	require.Error(t, err)

	assert.Equal(t, saga.StatusCompensated, state.Status)
	assert.Equal(t, "insufficient funds", state.FailureReason)
	assert.False(t, state.TicketIssued)

	reservation, err := f.reservations.FindByID(ctx, state.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusExpired, reservation.Status)

	showtime, err := f.showtimes.FindByID(ctx, f.showtimeID)
	require.NoError(t, err)
	assert.True(t, showtime.SeatsAvailable(f.seats))

	// Nothing was charged, so nothing is refunded.
	assert.Empty(t, f.gateway.refunded)
}

func TestPurchaseGatewayErrorCompensates(t *testing.T) {
	f := newFixture(t)
	f.gateway.chargeErr = errors.New("gateway unreachable")
	eng := f.engine(nopRecorder{})
	ctx := context.Background()

	state := f.newState()
	err := eng.RunForward(ctx, state)
	require.Error(t, err)
	assert.Equal(t, saga.StatusCompensated, state.Status)
	assert.Contains(t, state.FailureReason, "gateway unreachable")

	showtime, err := f.showtimes.FindByID(ctx, f.showtimeID)
	require.NoError(t, err)
	assert.True(t, showtime.SeatsAvailable(f.seats))
}

// failingTickets simulates a broken ticket store so a late step failure
// exercises the refund path.
type failingTickets struct {
	port.TicketRepository
}

func (failingTickets) Save(context.Context, *domain.Ticket) error {
	return errors.New("ticket store unavailable")
}

func TestLateFailureRefundsPayment(t *testing.T) {
	f := newFixture(t)
	f.deps.Tickets = failingTickets{f.tickets}
	eng := f.engine(nopRecorder{})
	ctx := context.Background()

	state := f.newState()
	err := eng.RunForward(ctx, state)
	require.Error(t, err)
	assert.Equal(t, saga.StatusCompensated, state.Status)

	payment, err := f.payments.FindByID(ctx, state.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, payment.Status)
	assert.Equal(t, []string{state.TransactionID}, f.gateway.refunded)

	showtime, err := f.showtimes.FindByID(ctx, f.showtimeID)
	require.NoError(t, err)
	assert.True(t, showtime.SeatsAvailable(f.seats))

	assert.Equal(t, map[string]bool{
		"seats_released":   true,
		"payment_refunded": true,
		"ticket_cancelled": true,
	}, state.CompensationSummary())
}

// runToCheckpoint executes the first two steps and persists the state the
// way a run that crashed after the payment checkpoint would leave it.
func runToCheckpoint(t *testing.T, f *fixture) *State {
	t.Helper()
	ctx := context.Background()
	state := f.newState()
	state.Status = saga.StatusRunning

	steps := Steps(f.deps)
	for _, step := range steps[:2] {
		res := step.Execute(ctx, state)
		require.True(t, res.IsSuccess(), res.Text())
		state.CurrentStep = step.Order()
	}

	rec, err := saga.Marshal(state, f.clk.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.Update(ctx, rec))
	return state
}

func TestResumeFinishesWithoutDoubleCharge(t *testing.T) {
	f := newFixture(t)
	runToCheckpoint(t, f)
	ctx := context.Background()

	// Rehydrate from storage as the recovery path does.
	recs, err := f.store.ListIncomplete(ctx, SagaType)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	restored := &State{}
	require.NoError(t, saga.Unmarshal(recs[0], restored))
	assert.True(t, restored.PaymentProcessed)

	eng := f.engine(nopRecorder{})
	require.NoError(t, eng.Resume(ctx, restored))

	assert.Equal(t, saga.StatusCompleted, restored.Status)
	assert.True(t, restored.TicketIssued)
	assert.Equal(t, 1, f.gateway.charges)
	assert.Equal(t, 1, restored.RetryCount)

	reservation, err := f.reservations.FindByID(ctx, restored.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusConfirmed, reservation.Status)
}

func TestResumeTimedOutPurchaseRefunds(t *testing.T) {
	f := newFixture(t)
	state := runToCheckpoint(t, f)
	ctx := context.Background()

	f.clk.Advance(DefaultTimeout + time.Minute)

	restored := &State{}
	rec, err := f.store.GetByID(ctx, state.SagaID)
	require.NoError(t, err)
	require.NoError(t, saga.Unmarshal(rec, restored))

	eng := f.engine(nopRecorder{})
	err = eng.Resume(ctx, restored)
	require.Error(t, err)

	assert.Equal(t, saga.StatusCompensated, restored.Status)
	assert.Equal(t, []string{restored.TransactionID}, f.gateway.refunded)

	showtime, err := f.showtimes.FindByID(ctx, f.showtimeID)
	require.NoError(t, err)
	assert.True(t, showtime.SeatsAvailable(f.seats))
}

func TestLeaseFencing(t *testing.T) {
	f := newFixture(t)
	state := runToCheckpoint(t, f)
	ctx := context.Background()
	now := f.clk.Now()

	ok, err := f.store.AcquireLease(ctx, state.SagaID, "sweeper-a", time.Minute, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// A live lease blocks other owners but renews for its holder.
	ok, err = f.store.AcquireLease(ctx, state.SagaID, "sweeper-b", time.Minute, now)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.store.AcquireLease(ctx, state.SagaID, "sweeper-a", time.Minute, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// An expired lease is broken by time alone.
	ok, err = f.store.AcquireLease(ctx, state.SagaID, "sweeper-b", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentPurchasesSameSeatsOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	eng := f.engine(nopRecorder{})
	ctx := context.Background()

	// Same two seats, two sagas running at once. The row lock taken by the
	// reserve step must let exactly one of them through.
	states := []*State{f.newState(), f.newState()}
	errs := make([]error, len(states))

	var wg sync.WaitGroup
	for i, st := range states {
		i, st := i, st
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = eng.RunForward(ctx, st)
		}()
	}
	wg.Wait()

	var completed int
	for _, err := range errs {
		if err == nil {
			completed++
		}
	}
	require.Equal(t, 1, completed, "racing purchases double-booked the seats")
	assert.Equal(t, 1, f.gateway.charges)

	showtime, err := f.showtimes.FindByID(ctx, f.showtimeID)
	require.NoError(t, err)
	assert.Len(t, showtime.ReservedSeats(), len(f.seats))
}
