package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Controller records answers for one view. Responses replace the cached
// session; nothing is retried.
type Controller struct {
	cache  *Cache
	remote Remote
	userID uuid.UUID
	notify Notifier
	log    zerolog.Logger
}

// NewController creates a Controller bound to cache.
func NewController(cache *Cache, remote Remote, userID uuid.UUID, notify Notifier, log zerolog.Logger) *Controller {
	return &Controller{
		cache:  cache,
		remote: remote,
		userID: userID,
		notify: notify,
		log:    log,
	}
}

// SetAnswer records optionID as the answer to questionID; a nil optionID
// clears it. A session that is not in progress is rejected locally with a
// conflict notice and the store is not called.
func (c *Controller) SetAnswer(ctx context.Context, questionID uuid.UUID, optionID *uuid.UUID) error {
	sess := c.cache.Session()
	if sess.Status != model.SessionStatusInProgress {
		c.notify.Notify(NoticeNotInProgress)
		return model.ErrSessionNotInProgress
	}

	seq := c.cache.Issue()
	ctx, cancel := bind(ctx, c.cache.Context())
	defer cancel()

	updated, err := c.remote.RecordAnswer(ctx, c.userID, sess.ID, questionID, optionID)
	if err != nil {
		if c.cache.Disposed() {
			return err
		}
		switch {
		case errors.Is(err, model.ErrSessionNotInProgress):
			c.notify.Notify(NoticeNotInProgress)
		case errors.Is(err, model.ErrInvalidAnswer):
			c.notify.Notify(NoticeInvalidAnswer)
		default:
			c.notify.Notify(NoticeSaveFailed)
		}
		c.log.Warn().Err(err).
			Str("session_id", sess.ID.String()).
			Str("question_id", questionID.String()).
			Msg("Record answer failed")
		return err
	}

	if !c.cache.Apply(seq, updated) {
		c.log.Debug().
			Str("session_id", sess.ID.String()).
			Uint64("seq", seq).
			Int64("revision", updated.Revision).
			Msg("Discarded stale answer response")
	}
	return nil
}
