package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
)

// ErrInvalidOptions is returned when a question payload does not carry exactly
// four options with exactly one of them correct.
var ErrInvalidOptions = errors.New("a question needs four options with exactly one correct")

// QuestionService handles question business logic.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	exams        *ExamService
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, exams *ExamService) *QuestionService {
	return &QuestionService{questionRepo: questionRepo, exams: exams}
}

// ListByExam retrieves all questions of an exam in presentation order.
func (s *QuestionService) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByExam(ctx, examID)
}

// Create adds a question with its options to an exam.
func (s *QuestionService) Create(ctx context.Context, examID uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	if err := checkOptions(req); err != nil {
		return nil, err
	}
	q, err := s.questionRepo.Create(ctx, examID, req)
	if err != nil {
		return nil, err
	}
	s.exams.Invalidate(ctx, examID)
	return q, nil
}

// Update replaces a question's text and its full option set.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req *model.QuestionRequest) (*model.Question, error) {
	if err := checkOptions(req); err != nil {
		return nil, err
	}
	q, err := s.questionRepo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.exams.Invalidate(ctx, q.ExamID)
	return q, nil
}

// Delete removes a question and its options.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	examID, err := s.questionRepo.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.exams.Invalidate(ctx, examID)
	return nil
}

func checkOptions(req *model.QuestionRequest) error {
	if len(req.Options) != model.OptionsPerQuestion || req.CorrectCount() != 1 {
		return fmt.Errorf("%w: got %d options, %d correct", ErrInvalidOptions, len(req.Options), req.CorrectCount())
	}
	return nil
}
