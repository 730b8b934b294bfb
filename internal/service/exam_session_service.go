package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/metrics"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/session"
)

// SessionSnapshot is published on a session's Redis channel after every
// accepted mutation. Result is set once the session finished.
type SessionSnapshot struct {
	Session *model.ExamSession `json:"session"`
	Result  *model.ExamResult  `json:"result,omitempty"`
}

// ExamSessionService handles exam session business logic. It is the store
// behind every participant workspace.
type ExamSessionService struct {
	sessionRepo *repository.ExamSessionRepository
	resultRepo  *repository.ExamResultRepository
	exams       *ExamService
	rdb         *redis.Client
	log         zerolog.Logger
}

var _ session.Remote = (*ExamSessionService)(nil)

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessionRepo *repository.ExamSessionRepository,
	resultRepo *repository.ExamResultRepository,
	exams *ExamService,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		sessionRepo: sessionRepo,
		resultRepo:  resultRepo,
		exams:       exams,
		rdb:         rdb,
		log:         log.With().Str("component", "exam_session_service").Logger(),
	}
}

// StartOrResume returns the participant's running session for the exam or
// starts a new one. The exam must be published, carry questions and be
// visible to the participant.
func (s *ExamSessionService) StartOrResume(ctx context.Context, examID, userID uuid.UUID) (*model.ExamSession, error) {
	detail, err := s.exams.Detail(ctx, examID)
	if err != nil {
		return nil, err
	}
	exam := &detail.Exam
	if !exam.IsPublished {
		return nil, model.ErrExamNotPublished
	}
	if len(detail.Questions) == 0 {
		return nil, model.ErrNoQuestions
	}
	if err := s.exams.CheckAccess(ctx, exam, userID); err != nil {
		return nil, err
	}

	started, err := s.sessionRepo.StartOrResume(ctx, exam, userID)
	if started != nil && started.Expired != nil {
		s.announceFinished(ctx, started.Expired, started.ExpiredResult)
	}
	if err != nil {
		return nil, err
	}

	sess := started.Session
	if started.Created {
		metrics.SessionsStarted.Inc()
		if err := s.rdb.ZAdd(ctx, config.WorkerKey.ExpiringSessions, redis.Z{
			Score:  float64(sess.ExpiresAt.Unix()),
			Member: sess.ID.String(),
		}).Err(); err != nil {
			// The sweeper's database scan still finds it.
			s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to index session expiry")
		}
		s.log.Info().
			Str("session_id", sess.ID.String()).
			Str("exam_id", examID.String()).
			Str("user_id", userID.String()).
			Time("expires_at", sess.ExpiresAt).
			Msg("Exam session started")
	}
	return sess, nil
}

// GetSession returns a session owned by userID.
func (s *ExamSessionService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, model.ErrSessionNotFound
	}
	return sess, nil
}

// LatestSession returns the participant's most recent session for an exam.
func (s *ExamSessionService) LatestSession(ctx context.Context, examID, userID uuid.UUID) (*model.ExamSession, error) {
	return s.sessionRepo.GetLatest(ctx, examID, userID)
}

// LatestResult returns the participant's most recent result for an exam.
func (s *ExamSessionService) LatestResult(ctx context.Context, examID, userID uuid.UUID) (*model.ExamResult, error) {
	return s.resultRepo.GetLatest(ctx, examID, userID)
}

// GetResult returns the result of a session owned by userID, or
// ErrResultNotReady while it is still running.
func (s *ExamSessionService) GetResult(ctx context.Context, userID, sessionID uuid.UUID) (*model.ExamResult, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.resultRepo.GetBySession(ctx, sessionID)
}

// RecordAnswer stores one answer (or clears it with a nil option) and
// returns the whole updated session.
func (s *ExamSessionService) RecordAnswer(ctx context.Context, userID, sessionID, questionID uuid.UUID, optionID *uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.sessionRepo.RecordAnswer(ctx, userID, sessionID, questionID, optionID)
	if err != nil {
		return nil, err
	}

	kind := "set"
	if optionID == nil {
		kind = "clear"
	}
	metrics.AnswersRecorded.WithLabelValues(kind).Inc()

	s.publish(ctx, &SessionSnapshot{Session: sess})
	return sess, nil
}

// Complete finishes a session owned by userID and returns its result. It is
// idempotent: a finished session yields its stored result.
func (s *ExamSessionService) Complete(ctx context.Context, userID, sessionID uuid.UUID) (*model.ExamSession, *model.ExamResult, error) {
	return s.finish(ctx, &userID, sessionID, model.SessionStatusCompleted)
}

// Expire finishes an abandoned session as expired. Used by the sweeper.
func (s *ExamSessionService) Expire(ctx context.Context, sessionID uuid.UUID) (*model.ExamSession, *model.ExamResult, error) {
	return s.finish(ctx, nil, sessionID, model.SessionStatusExpired)
}

func (s *ExamSessionService) finish(ctx context.Context, owner *uuid.UUID, sessionID uuid.UUID, status model.SessionStatus) (*model.ExamSession, *model.ExamResult, error) {
	sess, res, err := s.sessionRepo.Complete(ctx, owner, sessionID, status)
	if err != nil {
		return nil, nil, err
	}
	s.announceFinished(ctx, sess, res)
	return sess, res, nil
}

// announceFinished drops the expiry index entry and publishes the final
// snapshot to open workspaces.
func (s *ExamSessionService) announceFinished(ctx context.Context, sess *model.ExamSession, res *model.ExamResult) {
	if err := s.rdb.ZRem(ctx, config.WorkerKey.ExpiringSessions, sess.ID.String()).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to drop expiry index entry")
	}

	metrics.SessionsFinished.WithLabelValues(string(sess.Status)).Inc()
	s.publish(ctx, &SessionSnapshot{Session: sess, Result: res})

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("status", string(sess.Status)).
		Int("score", res.Score).
		Msg("Exam session finished")
}

// Subscribe opens the Redis channel carrying a session's snapshots.
func (s *ExamSessionService) Subscribe(ctx context.Context, sessionID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.SessionChannel(sessionID.String()))
}

// DecodeSnapshot parses a message received on a session channel.
func DecodeSnapshot(payload string) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Session == nil {
		return nil, errors.New("snapshot without session")
	}
	return &snap, nil
}

func (s *ExamSessionService) publish(ctx context.Context, snap *SessionSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal session snapshot")
		return
	}
	channel := config.CacheKey.SessionChannel(snap.Session.ID.String())
	if err := s.rdb.Publish(ctx, channel, data).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", snap.Session.ID.String()).Msg("Failed to publish session snapshot")
	}
}
