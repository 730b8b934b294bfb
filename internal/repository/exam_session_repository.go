package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/grading"
	"github.com/stemsi/tryout-backend/internal/model"
)

const sessionColumns = `s.id, s.exam_id, s.user_id, s.status, s.started_at, s.expires_at,
	s.completed_at, s.user_answers, s.revision, s.created_at, s.updated_at`

// ExamSessionRepository implements the session procedures of the exam store:
// start or resume, record an answer, and complete with grading.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	var answers []byte
	if err := row.Scan(&s.ID, &s.ExamID, &s.UserID, &s.Status, &s.StartedAt, &s.ExpiresAt,
		&s.CompletedAt, &answers, &s.Revision, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &s.UserAnswers); err != nil {
		return nil, fmt.Errorf("decode user_answers: %w", err)
	}
	return s, nil
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions s WHERE s.id = $1`, id))
	if err != nil {
		return nil, notFound(err, model.ErrSessionNotFound)
	}
	return s, nil
}

// GetLatest retrieves the most recently started session of a user for an exam.
func (r *ExamSessionRepository) GetLatest(ctx context.Context, examID, userID uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions s
		 WHERE s.exam_id = $1 AND s.user_id = $2
		 ORDER BY s.started_at DESC
		 LIMIT 1`, examID, userID))
	if err != nil {
		return nil, notFound(err, model.ErrSessionNotFound)
	}
	return s, nil
}

// StartResult is the outcome of StartOrResume.
type StartResult struct {
	Session *model.ExamSession
	Created bool
	// Expired is a running session found past its expiry and finished as
	// expired before the new attempt was started.
	Expired       *model.ExamSession
	ExpiredResult *model.ExamResult
}

// StartOrResume returns the user's running session for the exam, or starts a
// new one expiring after the exam's duration. A running session whose time
// already ran out is finished as expired first. Finished attempts count
// against the exam's limit; on ErrMaxAttemptsReached the returned result still
// reports a session expired on the way.
func (r *ExamSessionRepository) StartOrResume(ctx context.Context, exam *model.Exam, userID uuid.UUID) (*StartResult, error) {
	out := &StartResult{}
	var exhausted bool
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		running, lapsed, err := lockRunning(ctx, tx, exam.ID, userID)
		switch {
		case err == nil && !lapsed:
			out.Session = running
			return nil
		case err == nil:
			out.Expired, out.ExpiredResult, err = finishLocked(ctx, tx, running, model.SessionStatusExpired)
			if err != nil {
				return fmt.Errorf("expire lapsed session: %w", err)
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		var finished int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM exam_sessions
			 WHERE exam_id = $1 AND user_id = $2 AND status <> 'in_progress'`,
			exam.ID, userID).Scan(&finished); err != nil {
			return err
		}
		if finished >= exam.AttemptLimit() {
			// Commit the expiry above before reporting the limit.
			exhausted = true
			return nil
		}

		out.Session, err = scanSession(tx.QueryRow(ctx,
			`INSERT INTO exam_sessions AS s (exam_id, user_id, status, started_at, expires_at)
			 VALUES ($1, $2, 'in_progress', NOW(), NOW() + make_interval(mins => $3))
			 ON CONFLICT (exam_id, user_id) WHERE status = 'in_progress' DO NOTHING
			 RETURNING `+sessionColumns,
			exam.ID, userID, exam.DurationMinutes))
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start won the race.
			out.Session, err = scanSession(tx.QueryRow(ctx,
				`SELECT `+sessionColumns+` FROM exam_sessions s
				 WHERE s.exam_id = $1 AND s.user_id = $2 AND s.status = 'in_progress'
				 LIMIT 1`, exam.ID, userID))
			return err
		}
		if err != nil {
			return err
		}
		out.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if exhausted {
		return out, model.ErrMaxAttemptsReached
	}
	return out, nil
}

// lockRunning loads the user's running session for the exam for update and
// reports whether its time ran out.
func lockRunning(ctx context.Context, tx pgx.Tx, examID, userID uuid.UUID) (*model.ExamSession, bool, error) {
	return scanLocked(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+`, s.expires_at <= NOW()
		 FROM exam_sessions s
		 WHERE s.exam_id = $1 AND s.user_id = $2 AND s.status = 'in_progress'
		 LIMIT 1
		 FOR UPDATE`, examID, userID))
}

// lockSession loads a session for update and checks ownership. A nil owner
// skips the ownership check.
func lockSession(ctx context.Context, tx pgx.Tx, id uuid.UUID, owner *uuid.UUID) (*model.ExamSession, bool, error) {
	s, lapsed, err := scanLocked(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+`, s.expires_at <= NOW()
		 FROM exam_sessions s WHERE s.id = $1
		 FOR UPDATE`, id))
	if err != nil {
		return nil, false, notFound(err, model.ErrSessionNotFound)
	}
	if owner != nil && s.UserID != *owner {
		return nil, false, model.ErrSessionNotFound
	}
	return s, lapsed, nil
}

func scanLocked(row pgx.Row) (*model.ExamSession, bool, error) {
	var lapsed bool
	s := &model.ExamSession{}
	var answers []byte
	if err := row.Scan(&s.ID, &s.ExamID, &s.UserID, &s.Status, &s.StartedAt, &s.ExpiresAt,
		&s.CompletedAt, &answers, &s.Revision, &s.CreatedAt, &s.UpdatedAt, &lapsed); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(answers, &s.UserAnswers); err != nil {
		return nil, false, fmt.Errorf("decode user_answers: %w", err)
	}
	return s, lapsed, nil
}

// RecordAnswer sets or, with a nil option, clears the answer to one question
// and returns the whole updated session. It fails with
// ErrSessionNotInProgress once the session finished or its time ran out, and
// with ErrInvalidAnswer when the question or option is not part of the exam.
func (r *ExamSessionRepository) RecordAnswer(ctx context.Context, userID, sessionID, questionID uuid.UUID, optionID *uuid.UUID) (*model.ExamSession, error) {
	var updated *model.ExamSession
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		sess, lapsed, err := lockSession(ctx, tx, sessionID, &userID)
		if err != nil {
			return err
		}
		if sess.Status != model.SessionStatusInProgress || lapsed {
			return model.ErrSessionNotInProgress
		}

		var valid bool
		if optionID == nil {
			err = tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1 AND exam_id = $2)`,
				questionID, sess.ExamID).Scan(&valid)
		} else {
			err = tx.QueryRow(ctx,
				`SELECT EXISTS (
				   SELECT 1 FROM question_options o
				   JOIN questions q ON q.id = o.question_id
				   WHERE o.id = $1 AND q.id = $2 AND q.exam_id = $3)`,
				*optionID, questionID, sess.ExamID).Scan(&valid)
		}
		if err != nil {
			return err
		}
		if !valid {
			return model.ErrInvalidAnswer
		}

		if optionID == nil {
			updated, err = scanSession(tx.QueryRow(ctx,
				`UPDATE exam_sessions s
				 SET user_answers = s.user_answers - $2::text,
				     revision = s.revision + 1, updated_at = NOW()
				 WHERE s.id = $1
				 RETURNING `+sessionColumns,
				sessionID, questionID.String()))
		} else {
			updated, err = scanSession(tx.QueryRow(ctx,
				`UPDATE exam_sessions s
				 SET user_answers = s.user_answers || jsonb_build_object($2::text, $3::text),
				     revision = s.revision + 1, updated_at = NOW()
				 WHERE s.id = $1
				 RETURNING `+sessionColumns,
				sessionID, questionID.String(), optionID.String()))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete finishes a session with finalStatus, grades it and stores the
// result, all in one transaction. Completing a session that already finished
// returns its existing result. A nil owner is used by the expiry sweeper.
func (r *ExamSessionRepository) Complete(ctx context.Context, owner *uuid.UUID, sessionID uuid.UUID, finalStatus model.SessionStatus) (*model.ExamSession, *model.ExamResult, error) {
	var (
		sess *model.ExamSession
		res  *model.ExamResult
	)
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		locked, _, err := lockSession(ctx, tx, sessionID, owner)
		if err != nil {
			return err
		}

		if locked.Status.Finished() {
			sess = locked
			res, err = resultBySession(ctx, tx, sessionID)
			return err
		}

		sess, res, err = finishLocked(ctx, tx, locked, finalStatus)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, res, nil
}

// finishLocked grades a locked running session, sets finalStatus and stores
// the result.
func finishLocked(ctx context.Context, tx pgx.Tx, locked *model.ExamSession, finalStatus model.SessionStatus) (*model.ExamSession, *model.ExamResult, error) {
	questions, err := listQuestions(ctx, tx, locked.ExamID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	report := grading.Grade(questions, locked.UserAnswers)

	sess, err := scanSession(tx.QueryRow(ctx,
		`UPDATE exam_sessions s
		 SET status = $2, completed_at = NOW(),
		     revision = s.revision + 1, updated_at = NOW()
		 WHERE s.id = $1
		 RETURNING `+sessionColumns,
		locked.ID, finalStatus))
	if err != nil {
		return nil, nil, err
	}

	res := report.Result(sess)
	breakdown, err := json.Marshal(res.DetailedBreakdown)
	if err != nil {
		return nil, nil, fmt.Errorf("encode breakdown: %w", err)
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO exam_results (session_id, exam_id, user_id, score, total_questions,
		                           correct_count, incorrect_count, detailed_breakdown)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		res.SessionID, res.ExamID, res.UserID, res.Score, res.TotalQuestions,
		res.CorrectCount, res.IncorrectCount, breakdown,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return nil, nil, err
	}
	return sess, res, nil
}

// ListLapsed returns running sessions whose expiry passed more than grace ago.
func (r *ExamSessionRepository) ListLapsed(ctx context.Context, grace time.Duration, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_sessions
		 WHERE status = 'in_progress' AND expires_at + make_interval(secs => $1) < NOW()
		 ORDER BY expires_at ASC
		 LIMIT $2`, grace.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
