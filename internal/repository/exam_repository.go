package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

const examColumns = `e.id, e.title, e.description, e.duration_in_minutes, e.passing_score,
	e.max_attempts, e.is_published, e.package_id, e.author_id, e.created_at, e.updated_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row, e *model.Exam, extra ...any) error {
	dest := []any{&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.PassingScore,
		&e.MaxAttempts, &e.IsPublished, &e.PackageID, &e.AuthorID, &e.CreatedAt, &e.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

func getExam(ctx context.Context, q queryable, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := scanExam(q.QueryRow(ctx, `SELECT `+examColumns+` FROM exams e WHERE e.id = $1`, id), e)
	if err != nil {
		return nil, notFound(err, model.ErrExamNotFound)
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return getExam(ctx, r.pool, id)
}

// ListPaginated retrieves exams with their question counts, newest first.
func (r *ExamRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.ExamSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)
		 FROM exams e
		 ORDER BY e.created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams, err := collectSummaries(rows)
	return exams, total, err
}

// ListPublished returns published exams visible to a participant owning
// packages: exams of those packages, or exams without a package when the
// participant owns none. Oldest first.
func (r *ExamRepository) ListPublished(ctx context.Context, packages []string) ([]model.ExamSummary, error) {
	if packages == nil {
		packages = []string{}
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)
		 FROM exams e
		 WHERE e.is_published
		   AND CASE WHEN cardinality($1::text[]) > 0
		            THEN e.package_id = ANY($1::text[])
		            ELSE e.package_id IS NULL END
		 ORDER BY e.created_at ASC`, packages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]model.ExamSummary, error) {
	exams := []model.ExamSummary{}
	for rows.Next() {
		var s model.ExamSummary
		if err := scanExam(rows, &s.Exam, &s.QuestionCount); err != nil {
			return nil, err
		}
		exams = append(exams, s)
	}
	return exams, rows.Err()
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, duration_in_minutes, passing_score,
		                    max_attempts, is_published, package_id, author_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		e.Title, e.Description, e.DurationMinutes, e.PassingScore,
		e.MaxAttempts, e.IsPublished, e.PackageID, e.AuthorID,
	).Scan(&e.ID, &e.CreatedAt)
}

// Update modifies the editable fields of an exam. Sessions already started
// keep their expiry.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	err := scanExam(r.pool.QueryRow(ctx,
		`UPDATE exams e
		 SET title = $2, description = $3, duration_in_minutes = $4, passing_score = $5,
		     max_attempts = $6, package_id = $7, updated_at = NOW()
		 WHERE e.id = $1
		 RETURNING `+examColumns,
		e.ID, e.Title, e.Description, e.DurationMinutes, e.PassingScore, e.MaxAttempts, e.PackageID,
	), e)
	return notFound(err, model.ErrExamNotFound)
}

// SetPublished toggles the publication flag.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*model.Exam, error) {
	e := &model.Exam{}
	err := scanExam(r.pool.QueryRow(ctx,
		`UPDATE exams e SET is_published = $2, updated_at = NOW()
		 WHERE e.id = $1
		 RETURNING `+examColumns, id, published), e)
	if err != nil {
		return nil, notFound(err, model.ErrExamNotFound)
	}
	return e, nil
}

// Delete removes an exam together with its questions, sessions and results.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrExamNotFound
	}
	return nil
}
