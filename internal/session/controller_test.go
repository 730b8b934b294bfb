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

type controllerFixture struct {
	remote    *fakeRemote
	cache     *Cache
	rec       *recorder
	ctrl      *Controller
	questions []model.Question
	now       time.Time
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	f := &controllerFixture{questions: makeQuestions(4), now: t0}
	f.remote = newFakeRemote(f.questions, func() time.Time { return f.now })
	sess := f.remote.start(uuid.New(), uuid.New(), time.Hour)
	f.cache = NewCache(sess)
	f.rec = &recorder{}
	f.ctrl = NewController(f.cache, f.remote, sess.UserID, f.rec, zerolog.Nop())
	return f
}

func TestSetAnswerReplacesCachedSession(t *testing.T) {
	f := newControllerFixture(t)
	q := f.questions[0]
	opt := q.Options[2].ID

	require.NoError(t, f.ctrl.SetAnswer(context.Background(), q.ID, &opt))

	sess := f.cache.Session()
	require.Equal(t, opt, sess.UserAnswers[q.ID])
	require.Equal(t, int64(2), sess.Revision)
	require.Empty(t, f.rec.notices())
}

func TestSetAnswerClearRemovesKey(t *testing.T) {
	f := newControllerFixture(t)
	q := f.questions[1]
	opt := q.Options[0].ID

	require.NoError(t, f.ctrl.SetAnswer(context.Background(), q.ID, &opt))
	require.NoError(t, f.ctrl.SetAnswer(context.Background(), q.ID, nil))

	sess := f.cache.Session()
	_, ok := sess.UserAnswers[q.ID]
	require.False(t, ok)
	require.Empty(t, sess.UserAnswers)
}

func TestSetAnswerOnFinishedSessionIsLocalConflict(t *testing.T) {
	f := newControllerFixture(t)
	done := f.cache.Session()
	done.Status = model.SessionStatusCompleted
	done.Revision++
	require.True(t, f.cache.Observe(done))

	opt := f.questions[0].Options[0].ID
	err := f.ctrl.SetAnswer(context.Background(), f.questions[0].ID, &opt)
	require.ErrorIs(t, err, model.ErrSessionNotInProgress)

	record, _ := f.remote.calls()
	require.Zero(t, record)
	require.Equal(t, []Notice{NoticeNotInProgress}, f.rec.notices())
}

func TestSetAnswerAfterExpiryRejectedByStore(t *testing.T) {
	f := newControllerFixture(t)
	f.now = t0.Add(2 * time.Hour)

	opt := f.questions[0].Options[0].ID
	err := f.ctrl.SetAnswer(context.Background(), f.questions[0].ID, &opt)
	require.ErrorIs(t, err, model.ErrSessionNotInProgress)
	require.Equal(t, []Notice{NoticeNotInProgress}, f.rec.notices())
	require.Empty(t, f.cache.Session().UserAnswers)
}

func TestSetAnswerFailureLeavesCacheUntouched(t *testing.T) {
	f := newControllerFixture(t)
	f.remote.recordErr = errStoreDown
	before := f.cache.Session()

	opt := f.questions[0].Options[0].ID
	err := f.ctrl.SetAnswer(context.Background(), f.questions[0].ID, &opt)
	require.ErrorIs(t, err, errStoreDown)
	require.Equal(t, []Notice{NoticeSaveFailed}, f.rec.notices())
	require.Equal(t, before, f.cache.Session())

	record, _ := f.remote.calls()
	require.Equal(t, 1, record, "failed writes are not retried")
}

func TestSetAnswerInvalidAnswerNotice(t *testing.T) {
	f := newControllerFixture(t)
	f.remote.recordErr = model.ErrInvalidAnswer

	opt := uuid.New()
	err := f.ctrl.SetAnswer(context.Background(), f.questions[0].ID, &opt)
	require.ErrorIs(t, err, model.ErrInvalidAnswer)
	require.Equal(t, []Notice{NoticeInvalidAnswer}, f.rec.notices())
}
