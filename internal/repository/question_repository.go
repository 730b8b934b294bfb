package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

// QuestionRepository handles question and option data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves the questions of an exam with their options.
// Questions are ordered by "order" (unset last) then creation time; options
// by creation time.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return listQuestions(ctx, r.pool, examID)
}

// GetByID retrieves a single question with its options.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return getQuestion(ctx, r.pool, id)
}

// Create inserts a question and its options atomically.
func (r *QuestionRepository) Create(ctx context.Context, examID uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	var q *model.Question
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (exam_id, question_text, explanation, "order")
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			examID, req.QuestionText, req.Explanation, req.Order,
		).Scan(&id)
		if err != nil {
			if isForeignKeyViolation(err) {
				return model.ErrExamNotFound
			}
			return err
		}
		if err := insertOptions(ctx, tx, id, req.Options); err != nil {
			return err
		}
		q, err = getQuestion(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Update replaces the text, explanation, order and the full option set of a
// question atomically.
func (r *QuestionRepository) Update(ctx context.Context, id uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	var q *model.Question
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE questions SET question_text = $2, explanation = $3, "order" = $4
			 WHERE id = $1`,
			id, req.QuestionText, req.Explanation, req.Order)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrQuestionNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM question_options WHERE question_id = $1`, id); err != nil {
			return err
		}
		if err := insertOptions(ctx, tx, id, req.Options); err != nil {
			return err
		}
		q, err = getQuestion(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a question and its options.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var examID uuid.UUID
	err := r.pool.QueryRow(ctx, `DELETE FROM questions WHERE id = $1 RETURNING exam_id`, id).Scan(&examID)
	if err != nil {
		return uuid.Nil, notFound(err, model.ErrQuestionNotFound)
	}
	return examID, nil
}

func insertOptions(ctx context.Context, tx pgx.Tx, questionID uuid.UUID, opts []model.OptionInput) error {
	batch := &pgx.Batch{}
	for i, o := range opts {
		batch.Queue(
			`INSERT INTO question_options (question_id, option_text, is_correct, position)
			 VALUES ($1, $2, $3, $4)`,
			questionID, o.OptionText, o.IsCorrect, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

const questionColumns = `q.id, q.exam_id, q.question_text, q.explanation, q."order", q.created_at`

const questionOrder = `q."order" ASC NULLS LAST, q.created_at ASC`

func getQuestion(ctx context.Context, db queryable, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := db.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions q WHERE q.id = $1`, id).
		Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Explanation, &q.Order, &q.CreatedAt)
	if err != nil {
		return nil, notFound(err, model.ErrQuestionNotFound)
	}

	opts, err := listOptions(ctx, db, `o.question_id = $1`, id)
	if err != nil {
		return nil, err
	}
	q.Options = opts[q.ID]
	if q.Options == nil {
		q.Options = []model.Option{}
	}
	return q, nil
}

func listQuestions(ctx context.Context, db queryable, examID uuid.UUID) ([]model.Question, error) {
	rows, err := db.Query(ctx,
		`SELECT `+questionColumns+` FROM questions q
		 WHERE q.exam_id = $1
		 ORDER BY `+questionOrder, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.Explanation, &q.Order, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	opts, err := listOptions(ctx, db,
		`o.question_id IN (SELECT id FROM questions WHERE exam_id = $1)`, examID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Options = opts[questions[i].ID]
		if questions[i].Options == nil {
			questions[i].Options = []model.Option{}
		}
	}
	return questions, nil
}

func listOptions(ctx context.Context, db queryable, where string, arg any) (map[uuid.UUID][]model.Option, error) {
	rows, err := db.Query(ctx,
		`SELECT o.id, o.question_id, o.option_text, o.is_correct, o.created_at
		 FROM question_options o
		 WHERE `+where+`
		 ORDER BY o.created_at ASC, o.position ASC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]model.Option)
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect, &o.CreatedAt); err != nil {
			return nil, err
		}
		out[o.QuestionID] = append(out[o.QuestionID], o)
	}
	return out, rows.Err()
}
