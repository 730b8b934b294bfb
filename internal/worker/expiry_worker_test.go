package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

var t0 = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeIndex struct {
	mu      sync.Mutex
	expires map[uuid.UUID]time.Time
	err     error
	cutoffs []time.Time
}

func (f *fakeIndex) Due(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return nil, f.err
	}
	var ids []uuid.UUID
	for id, at := range f.expires {
		if !at.After(cutoff) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeIndex) Drop(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	delete(f.expires, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeIndex) has(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.expires[id]
	return ok
}

type fakeLapsed struct {
	ids []uuid.UUID
	err error
}

func (f *fakeLapsed) ListLapsed(context.Context, time.Duration, int) ([]uuid.UUID, error) {
	return f.ids, f.err
}

type fakeExpirer struct {
	mu       sync.Mutex
	finished map[uuid.UUID]bool
	failing  map[uuid.UUID]error
	calls    []uuid.UUID
	index    *fakeIndex
}

func (f *fakeExpirer) Expire(ctx context.Context, id uuid.UUID) (*model.ExamSession, *model.ExamResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err := f.failing[id]; err != nil {
		return nil, nil, err
	}
	if f.finished[id] {
		return nil, nil, model.ErrSessionNotInProgress
	}
	f.finished[id] = true
	if f.index != nil {
		_ = f.index.Drop(ctx, id)
	}
	return &model.ExamSession{ID: id, Status: model.SessionStatusExpired}, &model.ExamResult{SessionID: id}, nil
}

func (f *fakeExpirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newExpirer(index *fakeIndex) *fakeExpirer {
	return &fakeExpirer{finished: map[uuid.UUID]bool{}, failing: map[uuid.UUID]error{}, index: index}
}

func TestSweepExpiresLapsedSessions(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	lapsed, running, stale, dbOnly := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	index := &fakeIndex{expires: map[uuid.UUID]time.Time{
		lapsed:  t0.Add(-time.Minute),
		running: t0.Add(10 * time.Minute),
		// Inside the grace window: left for an open workspace.
		stale: t0.Add(-10 * time.Second),
	}}
	expirer := newExpirer(index)
	db := &fakeLapsed{ids: []uuid.UUID{lapsed, dbOnly}}

	w := NewExpiryWorker(expirer, db, index, clk, time.Second, 30*time.Second, zerolog.Nop())
	require.Equal(t, 2, w.Sweep(context.Background()))

	require.ElementsMatch(t, []uuid.UUID{lapsed, dbOnly}, expirer.calls)
	require.Equal(t, []time.Time{t0.Add(-30 * time.Second)}, index.cutoffs)
	require.False(t, index.has(lapsed))
	require.True(t, index.has(running))
	require.True(t, index.has(stale))
}

func TestSweepDropsFinishedEntries(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	done, broken := uuid.New(), uuid.New()

	index := &fakeIndex{expires: map[uuid.UUID]time.Time{
		done:   t0.Add(-time.Hour),
		broken: t0.Add(-time.Hour),
	}}
	expirer := &fakeExpirer{
		finished: map[uuid.UUID]bool{done: true},
		failing:  map[uuid.UUID]error{broken: errors.New("connection reset")},
	}

	w := NewExpiryWorker(expirer, &fakeLapsed{}, index, clk, time.Second, 0, zerolog.Nop())
	require.Zero(t, w.Sweep(context.Background()))

	require.False(t, index.has(done))
	// Transient failures are retried on the next sweep.
	require.True(t, index.has(broken))
}

func TestSweepFallsBackWhenIndexDown(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	id := uuid.New()
	index := &fakeIndex{err: errors.New("redis down")}
	expirer := newExpirer(nil)

	w := NewExpiryWorker(expirer, &fakeLapsed{ids: []uuid.UUID{id}}, index, clk, time.Second, 0, zerolog.Nop())
	require.Equal(t, 1, w.Sweep(context.Background()))
	require.Equal(t, []uuid.UUID{id}, expirer.calls)
}

func TestStartSweepsOnEveryTick(t *testing.T) {
	clk := testingclock.NewFakeClock(t0)
	id := uuid.New()
	index := &fakeIndex{expires: map[uuid.UUID]time.Time{id: t0.Add(5 * time.Second)}}
	expirer := newExpirer(index)

	w := NewExpiryWorker(expirer, &fakeLapsed{}, index, clk, 10*time.Second, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, clk.HasWaiters, time.Second, 5*time.Millisecond)
	require.Zero(t, expirer.callCount())

	clk.Step(10 * time.Second)
	require.Eventually(t, func() bool { return expirer.callCount() == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, index.has(id))

	cancel()
	<-done
}
