package saga

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinetix/cinetix/internal/domain"
	"github.com/cinetix/cinetix/internal/pkg/clock"
	"github.com/cinetix/cinetix/internal/port"
)

// fakeStore keeps the latest record per saga id.
type fakeStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]port.SagaRecord
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[uuid.UUID]port.SagaRecord)}
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (port.SagaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return port.SagaRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) ListIncomplete(context.Context, string) ([]port.SagaRecord, error) {
	return nil, nil
}

func (s *fakeStore) ListTimedOut(context.Context, string, time.Time) ([]port.SagaRecord, error) {
	return nil, nil
}

func (s *fakeStore) Save(ctx context.Context, rec port.SagaRecord) error {
	return s.Update(ctx, rec)
}

func (s *fakeStore) Update(_ context.Context, rec port.SagaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SagaID] = rec
	s.updates++
	return nil
}

func (s *fakeStore) AcquireLease(context.Context, uuid.UUID, string, time.Duration, time.Time) (bool, error) {
	return true, nil
}

// fakeRecorder collects recorded fact types.
type fakeRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *fakeRecorder) Record(_ context.Context, events ...domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.types = append(r.types, e.EventType())
	}
	return nil
}

// testState is a minimal concrete saga state.
type testState struct {
	State
	Trace []string        `json:"trace"`
	Flags map[string]bool `json:"flags"`
}

func newTestState(clk clock.Clock, timeout time.Duration) *testState {
	return &testState{
		State: NewState(uuid.New(), "test", 3, timeout, clk.Now()),
		Flags: make(map[string]bool),
	}
}

// testStep marks a flag when done and re-checks it on resume.
type testStep struct {
	name      string
	order     int
	failWith  string
	panicWith string
	compFail  bool
}

func (s *testStep) Name() string { return s.name }
func (s *testStep) Order() int   { return s.order }

func (s *testStep) Execute(_ context.Context, state *testState) StepResult {
	if state.Flags[s.name] {
		state.Trace = append(state.Trace, "skip:"+s.name)
		return Success("already done")
	}
	if s.panicWith != "" {
		panic(s.panicWith)
	}
	if s.failWith != "" {
		state.Trace = append(state.Trace, "fail:"+s.name)
		return Failure(s.failWith)
	}
	state.Flags[s.name] = true
	state.Trace = append(state.Trace, "exec:"+s.name)
	return Success("done")
}

func (s *testStep) Compensate(_ context.Context, state *testState) StepResult {
	state.Trace = append(state.Trace, "comp:"+s.name)
	state.Flags[s.name] = false
	if s.compFail {
		return Failure("compensation broke")
	}
	return Success("undone")
}

func (s *testStep) ShouldCompensate(state *testState) bool {
	return state.Flags[s.name]
}

func newEngineForTest(clk clock.Clock, steps ...Step[*testState]) (*Engine[*testState], *fakeStore, *fakeRecorder) {
	store := newFakeStore()
	rec := &fakeRecorder{}
	return NewEngine(steps, store, rec, clk), store, rec
}

func TestRunForwardHappyPath(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2}
	c := &testStep{name: "c", order: 3}
	// Deliberately unordered; the engine sorts by declared position.
	eng, store, rec := newEngineForTest(clk, c, a, b)

	state := newTestState(clk, 10*time.Minute)
	require.NoError(t, eng.RunForward(context.Background(), state))

	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c"}, state.Trace)
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 3, state.CurrentStep)
	require.NotNil(t, state.CompletedAt)

	saved := store.records[state.SagaID]
	assert.Equal(t, string(StatusCompleted), saved.Status)
	// One checkpoint per step plus the completion persist.
	assert.Equal(t, 4, store.updates)

	assert.Equal(t, []string{
		"saga.step_completed", "saga.step_completed", "saga.step_completed", "saga.completed",
	}, rec.types)
}

func TestRunForwardFailureCompensatesInDescendingOrder(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2}
	c := &testStep{name: "c", order: 3, failWith: "c exploded"}
	eng, _, rec := newEngineForTest(clk, a, b, c)

	state := newTestState(clk, 10*time.Minute)
	err := eng.RunForward(context.Background(), state)
	require.Error(t, err)

	assert.Equal(t, []string{"exec:a", "exec:b", "fail:c", "comp:b", "comp:a"}, state.Trace)
	assert.Equal(t, StatusCompensated, state.Status)
	assert.Equal(t, "c exploded", state.FailureReason)
	assert.Contains(t, rec.types, "saga.compensation_started")
	assert.Contains(t, rec.types, "saga.compensated")
}

func TestRunForwardOnlyCompensatesEligibleSteps(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2, failWith: "declined"}
	c := &testStep{name: "c", order: 3}
	eng, _, _ := newEngineForTest(clk, a, b, c)

	state := newTestState(clk, 10*time.Minute)
	require.Error(t, eng.RunForward(context.Background(), state))

	// c never ran and b never set its flag, so only a is compensated.
	assert.Equal(t, []string{"exec:a", "fail:b", "comp:a"}, state.Trace)
}

func TestStepPanicBecomesFailure(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2, panicWith: "boom"}
	eng, _, _ := newEngineForTest(clk, a, b)

	state := newTestState(clk, 10*time.Minute)
	err := eng.RunForward(context.Background(), state)
	require.Error(t, err)
	assert.Equal(t, StatusCompensated, state.Status)
	assert.Contains(t, state.FailureReason, "panicked")
}

func TestTimeoutBeforeStepTriggersCompensation(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	slow := &testStep{name: "a", order: 1}
	never := &testStep{name: "b", order: 2}
	eng, _, _ := newEngineForTest(clk, slow, never)

	state := newTestState(clk, 5*time.Minute)
	// The deadline passes before the first step boundary check.
	clk.Advance(6 * time.Minute)

	err := eng.RunForward(context.Background(), state)
	require.Error(t, err)
	assert.Equal(t, StatusCompensated, state.Status)
	assert.Empty(t, state.Trace) // nothing executed, nothing to undo
}

func TestResumeSkipsCompletedStepsEffects(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2}
	eng, _, _ := newEngineForTest(clk, a, b)

	// Simulate a crash after step a: the flag is set, status still running.
	state := newTestState(clk, 10*time.Minute)
	state.Status = StatusRunning
	state.CurrentStep = 1
	state.Flags["a"] = true

	require.NoError(t, eng.Resume(context.Background(), state))
	assert.Equal(t, []string{"skip:a", "exec:b"}, state.Trace)
	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 1, state.RetryCount)
}

func TestResumeTimedOutCompensates(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2}
	eng, _, _ := newEngineForTest(clk, a, b)

	state := newTestState(clk, 10*time.Minute)
	state.Status = StatusRunning
	state.CurrentStep = 1
	state.Flags["a"] = true
	clk.Advance(11 * time.Minute)

	err := eng.Resume(context.Background(), state)
	require.Error(t, err)
	assert.Equal(t, StatusCompensated, state.Status)
	assert.Equal(t, []string{"comp:a"}, state.Trace)
}

func TestCompensationContinuesPastFailures(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	b := &testStep{name: "b", order: 2, compFail: true}
	c := &testStep{name: "c", order: 3, failWith: "nope"}
	eng, _, _ := newEngineForTest(clk, a, b, c)

	state := newTestState(clk, 10*time.Minute)
	require.Error(t, eng.RunForward(context.Background(), state))

	// b's compensation failed but a still got its attempt.
	assert.Equal(t, []string{"exec:a", "exec:b", "fail:c", "comp:b", "comp:a"}, state.Trace)
	assert.Equal(t, StatusCompensated, state.Status)
}

func TestCompletedStateIsImmutable(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	a := &testStep{name: "a", order: 1}
	eng, store, _ := newEngineForTest(clk, a)

	state := newTestState(clk, 10*time.Minute)
	require.NoError(t, eng.RunForward(context.Background(), state))
	updatesAfterRun := store.updates

	require.Error(t, eng.RunForward(context.Background(), state))
	require.NoError(t, eng.Resume(context.Background(), state))
	assert.Equal(t, updatesAfterRun, store.updates)
	assert.Equal(t, []string{"exec:a"}, state.Trace)
}

func TestStatusLattice(t *testing.T) {
	assert.True(t, StatusStarted.CanTransitionTo(StatusRunning))
	assert.True(t, StatusRunning.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusRunning.CanTransitionTo(StatusTimedOut))
	assert.True(t, StatusTimedOut.CanTransitionTo(StatusCompensating))
	assert.True(t, StatusCompensating.CanTransitionTo(StatusCompensated))

	assert.False(t, StatusCompleted.CanTransitionTo(StatusRunning))
	assert.False(t, StatusCompensated.CanTransitionTo(StatusRunning))
	assert.False(t, StatusFailed.CanTransitionTo(StatusRunning))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusCompensating))
}

func TestMarshalRoundTrip(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))
	state := newTestState(clk, 10*time.Minute)
	state.Flags["a"] = true
	state.LogStep("a", true, "done", clk.Now())

	rec, err := Marshal(state, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, "test", rec.SagaType)
	assert.Equal(t, string(StatusStarted), rec.Status)

	restored := &testState{}
	require.NoError(t, Unmarshal(rec, restored))
	assert.True(t, restored.Flags["a"])
	require.Len(t, restored.StepLogs, 1)
	assert.Equal(t, "a", restored.StepLogs[0].StepName)
}
