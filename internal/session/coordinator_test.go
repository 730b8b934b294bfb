package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	remote    *fakeRemote
	cache     *Cache
	rec       *recorder
	completer *Completer
	coord     *Coordinator
}

func newCoordinatorFixture(t *testing.T) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{}
	f.remote = newFakeRemote(makeQuestions(2), func() time.Time { return t0 })
	sess := f.remote.start(uuid.New(), uuid.New(), time.Minute)
	f.cache = NewCache(sess)
	f.rec = &recorder{}
	f.completer = NewCompleter(f.cache, f.remote, sess.UserID, f.rec, zerolog.Nop())
	f.coord = NewCoordinator(f.cache, f.completer, f.rec)
	return f
}

func zeroTick() Tick { return Tick{Remaining: 0, Active: true} }

func TestCoordinatorFiresOnceAtZero(t *testing.T) {
	f := newCoordinatorFixture(t)
	gate := make(chan struct{})
	f.remote.completeGate = gate

	require.False(t, f.coord.Observe(Tick{Remaining: time.Second, Active: true}))
	require.False(t, f.coord.Observe(Tick{}))

	require.True(t, f.coord.Observe(zeroTick()))
	require.False(t, f.coord.Observe(zeroTick()))

	close(gate)
	require.Eventually(t, func() bool {
		return f.cache.Session().Status == model.SessionStatusCompleted
	}, time.Second, 5*time.Millisecond)

	// Zero ticks after completion do nothing.
	require.False(t, f.coord.Observe(zeroTick()))

	_, completes := f.remote.calls()
	require.Equal(t, 1, completes)
	require.Equal(t, []Notice{NoticeAutoSubmit}, f.rec.notices())

	res, redirect := f.cache.Result()
	require.NotNil(t, res)
	require.Equal(t, ResultPath(f.cache.Session().ExamID, f.cache.ID()), redirect)
}

func TestCoordinatorWaitsForPendingManualSubmit(t *testing.T) {
	f := newCoordinatorFixture(t)
	require.True(t, f.cache.BeginCompletion())

	require.False(t, f.coord.Observe(zeroTick()))
	require.False(t, f.cache.AutoSubmitted())

	_, completes := f.remote.calls()
	require.Zero(t, completes)
}

func TestCoordinatorFailedCompletionAllowsManualRetry(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.remote.setCompleteErr(errStoreDown)

	require.True(t, f.coord.Observe(zeroTick()))
	require.Eventually(t, func() bool { return !f.cache.Completing() }, time.Second, 5*time.Millisecond)

	require.Equal(t, []Notice{NoticeAutoSubmit, NoticeSubmitFailed}, f.rec.notices())
	require.Equal(t, model.SessionStatusInProgress, f.cache.Session().Status)

	// The automatic path stays spent.
	require.False(t, f.coord.Observe(zeroTick()))

	// A manual submit still goes through.
	f.remote.setCompleteErr(nil)
	c, err := f.completer.Complete(context.Background())
	require.NoError(t, err)
	require.Equal(t, model.SessionStatusCompleted, c.Session.Status)

	_, completes := f.remote.calls()
	require.Equal(t, 2, completes)
}

func TestCoordinatorCompletionCancelledOnDispose(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.remote.completeGate = make(chan struct{})

	require.True(t, f.coord.Observe(zeroTick()))
	require.Eventually(t, func() bool {
		_, completes := f.remote.calls()
		return completes == 1
	}, time.Second, 5*time.Millisecond)

	f.cache.Dispose()
	require.Eventually(t, func() bool { return !f.cache.Completing() }, time.Second, 5*time.Millisecond)
	require.Equal(t, []Notice{NoticeAutoSubmit}, f.rec.notices())
}

func TestCompleterRejectsWhilePending(t *testing.T) {
	f := newCoordinatorFixture(t)
	require.True(t, f.cache.BeginCompletion())

	_, err := f.completer.Complete(context.Background())
	require.ErrorIs(t, err, ErrCompletionPending)
	require.Equal(t, []Notice{NoticeSubmitPending}, f.rec.notices())
}

func TestCompleterReturnsKnownCompletion(t *testing.T) {
	f := newCoordinatorFixture(t)

	first, err := f.completer.Complete(context.Background())
	require.NoError(t, err)

	again, err := f.completer.Complete(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.Redirect, again.Redirect)
	require.Equal(t, first.Result.ID, again.Result.ID)

	_, completes := f.remote.calls()
	require.Equal(t, 1, completes)
}

func TestCompleterConflictWhenFinishedElsewhere(t *testing.T) {
	f := newCoordinatorFixture(t)
	expired := f.cache.Session()
	expired.Status = model.SessionStatusExpired
	expired.Revision++
	f.cache.Observe(expired)

	_, err := f.completer.Complete(context.Background())
	require.ErrorIs(t, err, model.ErrSessionNotInProgress)
	require.Equal(t, []Notice{NoticeNotInProgress}, f.rec.notices())
}
