package service

import (
	"context"

	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
)

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo *repository.DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData returns the portal totals.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*model.DashboardStats, error) {
	return s.repo.GetStats(ctx)
}
