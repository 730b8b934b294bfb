package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func newSnapshot(rev int64) *model.ExamSession {
	return &model.ExamSession{
		ID:          uuid.New(),
		Status:      model.SessionStatusInProgress,
		ExpiresAt:   t0.Add(time.Hour),
		UserAnswers: model.AnswerMap{},
		Revision:    rev,
	}
}

func withRevision(s *model.ExamSession, rev int64) *model.ExamSession {
	c := s.Clone()
	c.Revision = rev
	return c
}

func TestCacheDiscardsStaleResponses(t *testing.T) {
	base := newSnapshot(1)
	c := NewCache(base)

	first := c.Issue()
	second := c.Issue()

	// The later request resolves first with the newer revision.
	require.True(t, c.Apply(second, withRevision(base, 3)))
	// The earlier response arrives late carrying an older revision.
	require.False(t, c.Apply(first, withRevision(base, 2)))
	require.Equal(t, int64(3), c.Session().Revision)

	// Equal revision from an older request is also stale.
	require.False(t, c.Apply(first, withRevision(base, 3)))
}

func TestCacheRevisionWinsOverRequestOrder(t *testing.T) {
	base := newSnapshot(1)
	c := NewCache(base)

	first := c.Issue()
	second := c.Issue()

	// The store processed the first request last.
	require.True(t, c.Apply(second, withRevision(base, 2)))
	require.True(t, c.Apply(first, withRevision(base, 3)))
	require.Equal(t, int64(3), c.Session().Revision)
}

func TestCacheIgnoresOtherSessions(t *testing.T) {
	c := NewCache(newSnapshot(1))
	require.False(t, c.Apply(c.Issue(), newSnapshot(9)))
	require.False(t, c.Observe(newSnapshot(9)))
}

func TestCacheObserveNeedsNewerRevision(t *testing.T) {
	base := newSnapshot(4)
	c := NewCache(base)

	var got []Update
	unsubscribe := c.Subscribe(func(u Update) { got = append(got, u) })

	require.False(t, c.Observe(withRevision(base, 4)))
	require.True(t, c.Observe(withRevision(base, 5)))
	require.Len(t, got, 1)
	require.Equal(t, int64(5), got[0].Session.Revision)

	unsubscribe()
	require.True(t, c.Observe(withRevision(base, 6)))
	require.Len(t, got, 1)
}

func TestCacheSessionIsACopy(t *testing.T) {
	c := NewCache(newSnapshot(1))
	s := c.Session()
	s.UserAnswers[uuid.New()] = uuid.New()
	require.Empty(t, c.Session().UserAnswers)
}

func TestCacheTryAutoSubmit(t *testing.T) {
	c := NewCache(newSnapshot(1))
	require.True(t, c.TryAutoSubmit())
	require.True(t, c.Completing())
	require.False(t, c.TryAutoSubmit())

	c.EndCompletion()
	require.False(t, c.TryAutoSubmit(), "the automatic submission is claimed only once")
	require.True(t, c.AutoSubmitted())
}

func TestCacheTryAutoSubmitBlockedByPendingCompletion(t *testing.T) {
	c := NewCache(newSnapshot(1))
	require.True(t, c.BeginCompletion())
	require.False(t, c.TryAutoSubmit())
	require.False(t, c.AutoSubmitted())
	require.False(t, c.BeginCompletion())
}

func TestRegistryDisposesOnLastRelease(t *testing.T) {
	r := NewRegistry()
	sess := newSnapshot(1)

	a := r.Acquire(sess)
	b := r.Acquire(withRevision(sess, 2))
	require.Same(t, a, b)
	require.Equal(t, int64(2), a.Session().Revision)
	require.Equal(t, 1, r.Len())

	r.Release(a)
	require.False(t, a.Disposed())
	require.Same(t, a, r.Lookup(sess.ID))

	r.Release(b)
	require.True(t, a.Disposed())
	require.Nil(t, r.Lookup(sess.ID))
	require.Zero(t, r.Len())
}

func TestRegistryObserve(t *testing.T) {
	r := NewRegistry()
	sess := newSnapshot(1)
	require.False(t, r.Observe(withRevision(sess, 2)))

	c := r.Acquire(sess)
	defer r.Release(c)
	require.True(t, r.Observe(withRevision(sess, 2)))
	require.Equal(t, int64(2), c.Session().Revision)
}
