package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

const resultColumns = `r.id, r.session_id, r.exam_id, r.user_id, r.score, r.total_questions,
	r.correct_count, r.incorrect_count, r.detailed_breakdown, r.created_at`

// ExamResultRepository handles exam result data access.
type ExamResultRepository struct {
	pool *pgxpool.Pool
}

// NewExamResultRepository creates a new ExamResultRepository.
func NewExamResultRepository(pool *pgxpool.Pool) *ExamResultRepository {
	return &ExamResultRepository{pool: pool}
}

func scanResult(row pgx.Row) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	var breakdown []byte
	if err := row.Scan(&res.ID, &res.SessionID, &res.ExamID, &res.UserID, &res.Score,
		&res.TotalQuestions, &res.CorrectCount, &res.IncorrectCount, &breakdown, &res.CreatedAt); err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &res.DetailedBreakdown); err != nil {
			return nil, fmt.Errorf("decode detailed_breakdown: %w", err)
		}
	}
	return res, nil
}

func resultBySession(ctx context.Context, db queryable, sessionID uuid.UUID) (*model.ExamResult, error) {
	res, err := scanResult(db.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM exam_results r WHERE r.session_id = $1`, sessionID))
	if err != nil {
		return nil, notFound(err, model.ErrResultNotReady)
	}
	return res, nil
}

// GetBySession retrieves the result of a session.
func (r *ExamResultRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.ExamResult, error) {
	return resultBySession(ctx, r.pool, sessionID)
}

// GetLatest retrieves the most recent result of a user for an exam.
func (r *ExamResultRepository) GetLatest(ctx context.Context, examID, userID uuid.UUID) (*model.ExamResult, error) {
	res, err := scanResult(r.pool.QueryRow(ctx,
		`SELECT `+resultColumns+` FROM exam_results r
		 WHERE r.exam_id = $1 AND r.user_id = $2
		 ORDER BY r.created_at DESC
		 LIMIT 1`, examID, userID))
	if err != nil {
		return nil, notFound(err, model.ErrResultNotReady)
	}
	return res, nil
}

// LatestByUser returns the most recent result of a user per exam.
func (r *ExamResultRepository) LatestByUser(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]*model.ExamResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (r.exam_id) `+resultColumns+`
		 FROM exam_results r
		 WHERE r.user_id = $1
		 ORDER BY r.exam_id, r.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*model.ExamResult)
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out[res.ExamID] = res
	}
	return out, rows.Err()
}
