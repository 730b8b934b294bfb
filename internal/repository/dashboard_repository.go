package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/tryout-backend/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetStats retrieves the high-level counts for the dashboard.
func (r *DashboardRepository) GetStats(ctx context.Context) (*model.DashboardStats, error) {
	s := &model.DashboardStats{}
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM exams WHERE is_published),
			(SELECT COUNT(*) FROM questions),
			(SELECT COUNT(*) FROM exam_sessions WHERE status = 'in_progress'),
			(SELECT COUNT(*) FROM exam_results)`,
	).Scan(&s.TotalExams, &s.PublishedExams, &s.TotalQuestions, &s.SessionsInProgress, &s.CompletedResults)
	if err != nil {
		return nil, err
	}
	return s, nil
}
