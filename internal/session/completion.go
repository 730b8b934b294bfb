package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Completion is the outcome of finishing a session.
type Completion struct {
	Session  *model.ExamSession
	Result   *model.ExamResult
	Redirect string
}

// ResultPath is where a participant lands after finishing a session.
func ResultPath(examID, sessionID uuid.UUID) string {
	return fmt.Sprintf("/tryout/%s/result?session=%s", examID, sessionID)
}

// Completer finishes the session of one view.
type Completer struct {
	cache  *Cache
	remote Remote
	userID uuid.UUID
	notify Notifier
	log    zerolog.Logger
}

// NewCompleter creates a Completer bound to cache.
func NewCompleter(cache *Cache, remote Remote, userID uuid.UUID, notify Notifier, log zerolog.Logger) *Completer {
	return &Completer{
		cache:  cache,
		remote: remote,
		userID: userID,
		notify: notify,
		log:    log,
	}
}

// Complete submits the session. A session that already finished here returns
// its known completion; one finished elsewhere is a conflict. While another
// completion is in flight it returns ErrCompletionPending.
func (c *Completer) Complete(ctx context.Context) (*Completion, error) {
	sess := c.cache.Session()
	if sess.Status != model.SessionStatusInProgress {
		if res, redirect := c.cache.Result(); res != nil {
			return &Completion{Session: sess, Result: res, Redirect: redirect}, nil
		}
		c.notify.Notify(NoticeNotInProgress)
		return nil, model.ErrSessionNotInProgress
	}

	if !c.cache.BeginCompletion() {
		c.notify.Notify(NoticeSubmitPending)
		return nil, ErrCompletionPending
	}
	return c.finish(ctx)
}

// finish calls the store for a completion already marked in flight.
func (c *Completer) finish(ctx context.Context) (*Completion, error) {
	id := c.cache.ID()
	ctx, cancel := bind(ctx, c.cache.Context())
	defer cancel()

	sess, res, err := c.remote.Complete(ctx, c.userID, id)
	if err != nil {
		c.cache.EndCompletion()
		if c.cache.Disposed() {
			return nil, err
		}
		c.notify.Notify(NoticeSubmitFailed)
		c.log.Error().Err(err).Str("session_id", id.String()).Msg("Complete session failed")
		return nil, err
	}

	redirect := ResultPath(sess.ExamID, sess.ID)
	c.cache.Finish(sess, res, redirect)

	c.log.Info().
		Str("session_id", id.String()).
		Int("score", res.Score).
		Msg("Session completed")
	return &Completion{Session: sess, Result: res, Redirect: redirect}, nil
}
