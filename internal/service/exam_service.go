package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/config"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/response"
)

// ExamService handles exam business logic and the Redis detail cache.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	resultRepo   *repository.ExamResultRepository
	profileRepo  *repository.ProfileRepository
	rdb          *redis.Client
	cacheTTL     time.Duration
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	resultRepo *repository.ExamResultRepository,
	profileRepo *repository.ProfileRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		resultRepo:   resultRepo,
		profileRepo:  profileRepo,
		rdb:          rdb,
		cacheTTL:     cacheTTL,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// List retrieves exams with question counts, newest first.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.ExamSummary, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	exams, total, err := s.examRepo.ListPaginated(ctx, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return exams, pagination, nil
}

// ListForParticipant returns the published exams a participant may take,
// each with the participant's latest result.
func (s *ExamService) ListForParticipant(ctx context.Context, userID uuid.UUID) ([]model.ParticipantExam, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	exams, err := s.examRepo.ListPublished(ctx, profile.PurchasedPackages)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	latest, err := s.resultRepo.LatestByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}

	out := make([]model.ParticipantExam, len(exams))
	for i, e := range exams {
		out[i] = model.ParticipantExam{ExamSummary: e, LatestResult: latest[e.ID]}
	}
	return out, nil
}

// CheckAccess fails with ErrPackageLocked unless the exam is visible to the
// participant under the same rule as ListForParticipant.
func (s *ExamService) CheckAccess(ctx context.Context, exam *model.Exam, userID uuid.UUID) error {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("get profile: %w", err)
	}
	if !exam.VisibleTo(profile.PurchasedPackages) {
		return model.ErrPackageLocked
	}
	return nil
}

// PaperFor returns the participant-facing paper of a published exam the
// participant may see.
func (s *ExamService) PaperFor(ctx context.Context, examID, userID uuid.UUID) (*model.ExamPaper, error) {
	paper, err := s.Paper(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !paper.Exam.IsPublished {
		return nil, model.ErrExamNotPublished
	}
	if err := s.CheckAccess(ctx, &paper.Exam, userID); err != nil {
		return nil, err
	}
	return paper, nil
}

// Create inserts a new unpublished exam.
func (s *ExamService) Create(ctx context.Context, authorID uuid.UUID, req *model.ExamRequest) (*model.Exam, error) {
	exam := req.ToExam()
	exam.AuthorID = &authorID
	if err := s.examRepo.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Msg("Exam created")
	return exam, nil
}

// Update modifies an exam. The publication flag is left untouched.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.ExamRequest) (*model.Exam, error) {
	exam := req.ToExam()
	exam.ID = id
	if err := s.examRepo.Update(ctx, exam); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)
	return exam, nil
}

// SetPublished publishes or withdraws an exam. Publishing requires at least
// one question.
func (s *ExamService) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*model.Exam, error) {
	if published {
		detail, err := s.Detail(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(detail.Questions) == 0 {
			return nil, model.ErrNoQuestions
		}
	}

	exam, err := s.examRepo.SetPublished(ctx, id, published)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)

	s.log.Info().
		Str("exam_id", id.String()).
		Bool("published", published).
		Msg("Exam publication changed")
	return exam, nil
}

// Delete removes an exam and everything attached to it.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.examRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	s.log.Info().Str("exam_id", id.String()).Msg("Exam deleted")
	return nil
}

// ─── Detail cache ───────────────────────────────────────────────────────────

// Detail returns the exam with its ordered questions and correct flags.
// Reads go through Redis; a cache failure falls back to PostgreSQL.
func (s *ExamService) Detail(ctx context.Context, examID uuid.UUID) (*model.ExamDetail, error) {
	key := config.CacheKey.ExamRevealedDetailKey(examID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var detail model.ExamDetail
		if err := json.Unmarshal(data, &detail); err == nil {
			return &detail, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt cached detail, rebuilding")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Detail cache unavailable")
	}

	detail, err := s.loadDetail(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.warm(ctx, detail)
	return detail, nil
}

// Paper returns the participant-facing exam detail (no correct answers).
func (s *ExamService) Paper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamDetailKey(examID.String())

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal(data, &paper); err == nil {
			return &paper, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache unavailable")
	}

	detail, err := s.Detail(ctx, examID)
	if err != nil {
		return nil, err
	}
	return detail.Paper(), nil
}

// Invalidate drops both cached renditions of an exam.
func (s *ExamService) Invalidate(ctx context.Context, examID uuid.UUID) {
	err := s.rdb.Del(ctx,
		config.CacheKey.ExamDetailKey(examID.String()),
		config.CacheKey.ExamRevealedDetailKey(examID.String()),
	).Err()
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate exam cache")
	}
}

func (s *ExamService) loadDetail(ctx context.Context, examID uuid.UUID) (*model.ExamDetail, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return &model.ExamDetail{Exam: *exam, Questions: questions}, nil
}

// warm caches both renditions in one pipeline.
func (s *ExamService) warm(ctx context.Context, detail *model.ExamDetail) {
	revealed, err := json.Marshal(detail)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to marshal exam detail")
		return
	}
	paper, err := json.Marshal(detail.Paper())
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to marshal exam paper")
		return
	}

	id := detail.Exam.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamRevealedDetailKey(id), revealed, s.cacheTTL)
	pipe.Set(ctx, config.CacheKey.ExamDetailKey(id), paper, s.cacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id).Msg("Failed to warm exam cache")
		return
	}

	s.log.Debug().
		Str("exam_id", id).
		Int("questions", len(detail.Questions)).
		Msg("Cache warmed")
}
