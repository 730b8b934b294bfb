package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/model"
	"k8s.io/utils/clock"
)

// sweepBatch caps how many sessions one sweep expires.
const sweepBatch = 200

// SessionExpirer finishes a session as expired.
type SessionExpirer interface {
	Expire(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, *model.ExamResult, error)
}

// LapsedLister finds running sessions past their expiry in PostgreSQL.
type LapsedLister interface {
	ListLapsed(ctx context.Context, grace time.Duration, limit int) ([]uuid.UUID, error)
}

// ExpiryIndex is the set of running sessions ordered by expiry.
type ExpiryIndex interface {
	Due(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	Drop(ctx context.Context, sessionID uuid.UUID) error
}

// RedisExpiryIndex reads the sorted set the session service maintains.
type RedisExpiryIndex struct {
	rdb *redis.Client
}

func NewRedisExpiryIndex(rdb *redis.Client) *RedisExpiryIndex {
	return &RedisExpiryIndex{rdb: rdb}
}

func (x *RedisExpiryIndex) Due(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	members, err := x.rdb.ZRangeByScore(ctx, config.WorkerKey.ExpiringSessions, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(cutoff.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			// Garbage in the set never becomes due otherwise.
			x.rdb.ZRem(ctx, config.WorkerKey.ExpiringSessions, m)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (x *RedisExpiryIndex) Drop(ctx context.Context, sessionID uuid.UUID) error {
	return x.rdb.ZRem(ctx, config.WorkerKey.ExpiringSessions, sessionID.String()).Err()
}

// ExpiryWorker finishes sessions whose time ran out while no workspace was
// open to submit them. It waits grace past expires_at so an open workspace
// gets to auto-submit first.
type ExpiryWorker struct {
	sessions SessionExpirer
	lapsed   LapsedLister
	index    ExpiryIndex
	clock    clock.WithTicker
	interval time.Duration
	grace    time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(
	sessions SessionExpirer,
	lapsed LapsedLister,
	index ExpiryIndex,
	clk clock.WithTicker,
	interval, grace time.Duration,
	log zerolog.Logger,
) *ExpiryWorker {
	return &ExpiryWorker{
		sessions: sessions,
		lapsed:   lapsed,
		index:    index,
		clock:    clk,
		interval: interval,
		grace:    grace,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start runs sweeps until ctx is cancelled. Call in a goroutine.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("Worker started")

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C():
			w.Sweep(ctx)
		}
	}
}

// Sweep expires every lapsed session once and returns how many it finished.
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	cutoff := w.clock.Now().Add(-w.grace)

	seen := make(map[uuid.UUID]struct{})
	var due []uuid.UUID
	add := func(ids []uuid.UUID) {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			due = append(due, id)
		}
	}

	ids, err := w.index.Due(ctx, cutoff, sweepBatch)
	if err != nil {
		w.log.Warn().Err(err).Msg("Expiry index unavailable, falling back to PostgreSQL")
	}
	add(ids)

	// Sessions created while Redis was down never entered the index.
	ids, err = w.lapsed.ListLapsed(ctx, w.grace, sweepBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("ListLapsed failed")
	}
	add(ids)

	expired := 0
	for _, id := range due {
		if ctx.Err() != nil {
			break
		}
		_, res, err := w.sessions.Expire(ctx, id)
		switch {
		case err == nil:
			expired++
			w.log.Info().Str("session_id", id.String()).Int("score", res.Score).Msg("Session expired")
		case errors.Is(err, model.ErrSessionNotInProgress), errors.Is(err, model.ErrSessionNotFound):
			if err := w.index.Drop(ctx, id); err != nil {
				w.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to drop expiry index entry")
			}
		default:
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Expire failed")
		}
	}
	return expired
}
