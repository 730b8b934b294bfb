package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type workspaceFixture struct {
	clock     *testingclock.FakeClock
	remote    *fakeRemote
	registry  *Registry
	questions []model.Question
	paper     *model.ExamPaper
	sess      *model.ExamSession
}

func newWorkspaceFixture(t *testing.T, duration time.Duration) *workspaceFixture {
	t.Helper()
	f := &workspaceFixture{
		clock:     testingclock.NewFakeClock(t0),
		registry:  NewRegistry(),
		questions: makeQuestions(4),
	}
	f.remote = newFakeRemote(f.questions, f.clock.Now)

	examID := uuid.New()
	detail := &model.ExamDetail{Exam: model.Exam{ID: examID, DurationMinutes: int(duration / time.Minute)}, Questions: f.questions}
	f.paper = detail.Paper()
	f.sess = f.remote.start(examID, uuid.New(), duration)
	return f
}

func (f *workspaceFixture) open(rec *recorder) *Workspace {
	return Open(f.registry, f.remote, f.sess.UserID, f.paper, f.sess, rec, Options{Clock: f.clock, Logger: zerolog.Nop()})
}

func TestWorkspaceAutoSubmitsAtExpiry(t *testing.T) {
	f := newWorkspaceFixture(t, time.Minute)
	rec := &recorder{}
	w := f.open(rec)
	defer w.Close()

	require.Eventually(t, func() bool { return f.clock.HasWaiters() && len(rec.of(EventTick)) == 1 }, time.Second, 5*time.Millisecond)
	first := rec.of(EventTick)[0].Payload.(TickPayload)
	require.Equal(t, int64(60000), *first.RemainingMS)

	ctx := context.Background()
	require.NoError(t, w.Answer(ctx, f.questions[0].ID, f.questions[0].Options[0].ID))
	require.NoError(t, w.Answer(ctx, f.questions[1].ID, f.questions[1].Options[0].ID))
	require.Len(t, w.Session().UserAnswers, 2)

	f.clock.Step(61 * time.Second)
	require.Eventually(t, func() bool { return len(rec.of(EventCompleted)) == 1 }, time.Second, 5*time.Millisecond)

	completed := rec.of(EventCompleted)[0].Payload.(CompletedPayload)
	require.Equal(t, ResultPath(f.sess.ExamID, f.sess.ID), completed.Redirect)
	require.Contains(t, completed.Redirect, "session="+f.sess.ID.String())
	require.Equal(t, 50, completed.Result.Score)
	require.Equal(t, 2, completed.Result.CorrectCount)
	require.Contains(t, rec.notices(), NoticeAutoSubmit)

	// The timer is gone once the session completed.
	require.Eventually(t, func() bool {
		ticks := rec.of(EventTick)
		return !w.timer.Running() && ticks[len(ticks)-1].Payload.(TickPayload).RemainingMS == nil
	}, time.Second, 5*time.Millisecond)
	n := len(rec.of(EventTick))
	f.clock.Step(5 * time.Second)
	require.Never(t, func() bool {
		_, completes := f.remote.calls()
		return completes != 1 || len(rec.of(EventTick)) != n
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestWorkspaceTwoViewsShareOneAutoSubmit(t *testing.T) {
	f := newWorkspaceFixture(t, time.Minute)
	recA, recB := &recorder{}, &recorder{}
	a := f.open(recA)
	defer a.Close()
	b := f.open(recB)
	defer b.Close()

	require.Eventually(t, func() bool {
		return len(recA.of(EventTick)) >= 1 && len(recB.of(EventTick)) >= 1
	}, time.Second, 5*time.Millisecond)

	// An answer given in one view reaches the other.
	require.NoError(t, a.Answer(context.Background(), f.questions[2].ID, f.questions[2].Options[1].ID))
	require.Equal(t, f.questions[2].Options[1].ID, b.Session().UserAnswers[f.questions[2].ID])

	f.clock.Step(2 * time.Minute)
	require.Eventually(t, func() bool {
		return len(recA.of(EventCompleted)) == 1 && len(recB.of(EventCompleted)) == 1
	}, time.Second, 5*time.Millisecond)

	_, completes := f.remote.calls()
	require.Equal(t, 1, completes)
}

func TestWorkspaceRejectsForeignOption(t *testing.T) {
	f := newWorkspaceFixture(t, time.Minute)
	rec := &recorder{}
	w := f.open(rec)
	defer w.Close()

	err := w.Answer(context.Background(), f.questions[0].ID, f.questions[1].Options[0].ID)
	require.ErrorIs(t, err, model.ErrInvalidAnswer)
	require.Contains(t, rec.notices(), NoticeInvalidAnswer)

	record, _ := f.remote.calls()
	require.Zero(t, record)
}

func TestWorkspaceClearAndManualSubmit(t *testing.T) {
	f := newWorkspaceFixture(t, 10*time.Minute)
	rec := &recorder{}
	w := f.open(rec)
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.Answer(ctx, f.questions[0].ID, f.questions[0].Options[0].ID))
	require.NoError(t, w.Clear(ctx, f.questions[0].ID))
	require.Empty(t, w.Session().UserAnswers)

	c, err := w.Submit(ctx)
	require.NoError(t, err)
	require.Equal(t, ResultPath(f.sess.ExamID, f.sess.ID), c.Redirect)
	require.Zero(t, c.Result.Score)

	require.Eventually(t, func() bool { return len(rec.of(EventCompleted)) == 1 }, time.Second, 5*time.Millisecond)

	// Answers after completion are a local conflict.
	err = w.Answer(ctx, f.questions[1].ID, f.questions[1].Options[0].ID)
	require.ErrorIs(t, err, model.ErrSessionNotInProgress)
	require.Contains(t, rec.notices(), NoticeNotInProgress)
}

func TestWorkspaceNavigation(t *testing.T) {
	f := newWorkspaceFixture(t, time.Minute)
	rec := &recorder{}
	w := f.open(rec)
	defer w.Close()

	last := func() NavigationPayload {
		navs := rec.of(EventNavigation)
		return navs[len(navs)-1].Payload.(NavigationPayload)
	}

	require.Equal(t, 0, last().Index)
	require.Equal(t, 4, last().Total)

	w.Goto(3)
	require.Equal(t, 3, last().Index)
	require.Equal(t, f.questions[3].ID, *last().QuestionID)

	w.Next()
	require.Equal(t, 3, last().Index)

	// A refetch that shrinks the list pulls the index back into range.
	shrunk := &model.ExamPaper{Exam: f.paper.Exam, Questions: f.paper.Questions[:2]}
	w.Refresh(shrunk)
	require.Equal(t, 1, last().Index)
	require.Equal(t, 2, last().Total)

	w.Prev()
	w.Prev()
	require.Equal(t, 0, last().Index)
}

func TestWorkspaceCloseReleasesCache(t *testing.T) {
	f := newWorkspaceFixture(t, time.Minute)
	w := f.open(&recorder{})
	require.Equal(t, 1, f.registry.Len())

	w.Close()
	w.Close()
	require.Zero(t, f.registry.Len())
}

func TestWorkspaceOnFinishedSessionHasNoTimer(t *testing.T) {
	f := newWorkspaceFixture(t, time.Minute)
	done := f.sess.Clone()
	done.Status = model.SessionStatusExpired
	f.sess = done

	rec := &recorder{}
	w := f.open(rec)
	defer w.Close()

	ticks := rec.of(EventTick)
	require.Len(t, ticks, 1)
	require.Nil(t, ticks[0].Payload.(TickPayload).RemainingMS)
	require.False(t, f.clock.HasWaiters())
}
