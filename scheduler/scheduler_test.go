package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bellapacxx/bingo75-backend/events"
	"github.com/bellapacxx/bingo75-backend/game"
	"github.com/bellapacxx/bingo75-backend/models"
	"github.com/bellapacxx/bingo75-backend/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// -------------------- Fakes --------------------

type fakeStore struct {
	mu sync.Mutex

	active  []models.Round
	waiting []models.Round

	lastCalled map[uint]time.Time
	activated  []uint
	appended   map[uint][]int
	completed  []uint
	carries    map[uint]float64

	failLastCalledFor uint
	nextRoundID       uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lastCalled:  make(map[uint]time.Time),
		appended:    make(map[uint][]int),
		carries:     make(map[uint]float64),
		nextRoundID: 100,
	}
}

func (f *fakeStore) RoundsByStatus(_ context.Context, status string) ([]models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch status {
	case models.RoundActive:
		return append([]models.Round(nil), f.active...), nil
	case models.RoundWaiting:
		return append([]models.Round(nil), f.waiting...), nil
	}
	return nil, nil
}

func (f *fakeStore) ActivateRound(_ context.Context, roundID uint, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, roundID)
	return nil
}

func (f *fakeStore) LastCalledAt(_ context.Context, roundID uint) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if roundID == f.failLastCalledFor {
		return time.Time{}, false, errors.New("store unavailable")
	}
	at, ok := f.lastCalled[roundID]
	return at, ok, nil
}

func (f *fakeStore) AppendCalledNumber(_ context.Context, roundID uint, number int, _ time.Time) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended[roundID] = append(f.appended[roundID], number)
	for i := range f.active {
		if f.active[i].ID == roundID {
			called := append(f.active[i].Called(), number)
			f.active[i].SetCalled(called)
			return called, nil
		}
	}
	return f.appended[roundID], nil
}

func (f *fakeStore) CompleteRound(_ context.Context, roundID uint, carry float64, _ time.Time) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, roundID)
	f.carries[roundID] = carry
	return &models.Round{ID: f.nextRoundID, Status: models.RoundWaiting, JackpotPool: carry}, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	busy     bool
	acquired []string
	released []string
}

func (l *fakeLocker) Acquire(_ context.Context, name string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return "", false, nil
	}
	l.acquired = append(l.acquired, name)
	return "tok", true, nil
}

func (l *fakeLocker) Release(_ context.Context, name, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, name)
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeBus) Publish(_ context.Context, _ uint, ev events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *fakeBus) types() []events.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Type, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Type
	}
	return out
}

// -------------------- Helpers --------------------

func newTestScheduler(st Store, bus *fakeBus, locks *fakeLocker) *Scheduler {
	return New(st, bus, locks, Config{
		PollInterval: 10 * time.Millisecond,
		CallInterval: 5 * time.Second,
		LockLease:    5 * time.Second,
		JackpotRate:  0.10,
	}, zap.NewNop().Sugar(), nil)
}

func roundWithCalls(id uint, count int) models.Round {
	r := models.Round{ID: id, RoomID: id, Status: models.RoundActive}
	nums := make([]int, count)
	for i := range nums {
		nums[i] = i + 1
	}
	r.SetCalled(nums)
	return r
}

// -------------------- Tests --------------------

func TestScanStartsWaitingRounds(t *testing.T) {
	st := newFakeStore()
	st.waiting = []models.Round{{ID: 1, RoomID: 1, Status: models.RoundWaiting}}
	bus := &fakeBus{}

	newTestScheduler(st, bus, &fakeLocker{}).scan(context.Background())

	assert.Equal(t, []uint{1}, st.activated)
	assert.Equal(t, []events.Type{events.TypeRoundStarted}, bus.types())
}

func TestScanCallsNumberWhenDue(t *testing.T) {
	st := newFakeStore()
	st.active = []models.Round{roundWithCalls(1, 10)}
	st.lastCalled[1] = time.Now().Add(-time.Minute)
	bus := &fakeBus{}

	newTestScheduler(st, bus, &fakeLocker{}).scan(context.Background())

	require.Len(t, st.appended[1], 1)
	n := st.appended[1][0]
	assert.Greater(t, n, 10, "drawn number must come from the uncalled pool")
	assert.LessOrEqual(t, n, game.MaxNumber)

	require.Len(t, bus.events, 1)
	assert.Equal(t, events.TypeNumberCalled, bus.events[0].Type)
	assert.Equal(t, n, bus.events[0].Number)
	assert.Len(t, bus.events[0].CalledNumbers, 11)
}

func TestScanSkipsCallBeforeInterval(t *testing.T) {
	st := newFakeStore()
	st.active = []models.Round{roundWithCalls(1, 10)}
	st.lastCalled[1] = time.Now()
	bus := &fakeBus{}

	newTestScheduler(st, bus, &fakeLocker{}).scan(context.Background())

	assert.Empty(t, st.appended[1])
	assert.Empty(t, bus.events)
}

func TestScanMeasuresFromStartWhenNothingCalled(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	round := models.Round{ID: 1, RoomID: 1, Status: models.RoundActive, StartTime: &start}
	st := newFakeStore()
	st.active = []models.Round{round}
	bus := &fakeBus{}

	newTestScheduler(st, bus, &fakeLocker{}).scan(context.Background())

	assert.Len(t, st.appended[1], 1)
}

func TestForcedCompletionAtSeventyFive(t *testing.T) {
	round := roundWithCalls(1, game.MaxNumber)
	round.TotalPool = 10.0
	round.JackpotPool = 2.0
	st := newFakeStore()
	st.active = []models.Round{round}
	bus := &fakeBus{}
	locks := &fakeLocker{}

	newTestScheduler(st, bus, locks).scan(context.Background())

	assert.Equal(t, []uint{1}, st.completed)
	assert.InDelta(t, 2.0+10.0*0.10, st.carries[1], 1e-9)
	assert.Equal(t, []string{"round:1"}, locks.acquired)
	assert.Equal(t, []string{"round:1"}, locks.released)
	assert.Equal(t, []events.Type{events.TypeRoundEnded, events.TypeNewRound}, bus.types())
}

func TestForcedCompletionDeferredWhenLockBusy(t *testing.T) {
	st := newFakeStore()
	st.active = []models.Round{roundWithCalls(1, game.MaxNumber)}
	bus := &fakeBus{}
	locks := &fakeLocker{busy: true}

	newTestScheduler(st, bus, locks).scan(context.Background())

	assert.Empty(t, st.completed, "completion waits for the lock")
	assert.Empty(t, bus.events)
}

func TestCompletionSkippedWhenAlreadySettled(t *testing.T) {
	st := newFakeStore()
	st.active = []models.Round{roundWithCalls(1, game.MaxNumber)}
	bus := &fakeBus{}
	locks := &fakeLocker{}
	s := newTestScheduler(&settledStore{fakeStore: st}, bus, locks)

	s.scan(context.Background())

	assert.Empty(t, bus.events, "no events when a claim settled first")
	assert.Equal(t, []string{"round:1"}, locks.released, "lock still released")
}

// settledStore simulates a claim winning the race: CompleteRound finds
// the round already terminal.
type settledStore struct {
	*fakeStore
}

func (s *settledStore) CompleteRound(_ context.Context, _ uint, _ float64, _ time.Time) (*models.Round, error) {
	return nil, store.ErrRoundNotOpen
}

func TestRoundFailureDoesNotStallOthers(t *testing.T) {
	st := newFakeStore()
	st.active = []models.Round{roundWithCalls(1, 10), roundWithCalls(2, 10)}
	st.failLastCalledFor = 1
	st.lastCalled[2] = time.Now().Add(-time.Minute)
	bus := &fakeBus{}

	newTestScheduler(st, bus, &fakeLocker{}).scan(context.Background())

	assert.Empty(t, st.appended[1])
	assert.Len(t, st.appended[2], 1, "healthy round still processed")
}

func TestStartStop(t *testing.T) {
	st := newFakeStore()
	s := newTestScheduler(st, &fakeBus{}, &fakeLocker{})

	s.Start()
	time.Sleep(30 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
