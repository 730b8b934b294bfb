package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/repository"
	"github.com/stemsi/tryout-backend/internal/session"
	"golang.org/x/sync/errgroup"
)

// ResultService assembles the participant result view.
type ResultService struct {
	sessions   *ExamSessionService
	resultRepo *repository.ExamResultRepository
	exams      *ExamService
}

// NewResultService creates a new ResultService.
func NewResultService(sessions *ExamSessionService, resultRepo *repository.ExamResultRepository, exams *ExamService) *ResultService {
	return &ResultService{sessions: sessions, resultRepo: resultRepo, exams: exams}
}

// View loads the session, its result and the revealed exam detail
// concurrently and builds the result view.
func (s *ResultService) View(ctx context.Context, userID, sessionID uuid.UUID) (*session.ResultView, error) {
	sess, err := s.sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Finished() {
		return nil, model.ErrResultNotReady
	}

	var (
		detail *model.ExamDetail
		res    *model.ExamResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail, err = s.exams.Detail(gctx, sess.ExamID)
		return err
	})
	g.Go(func() error {
		var err error
		res, err = s.resultRepo.GetBySession(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return session.BuildResultView(detail, sess, res), nil
}
