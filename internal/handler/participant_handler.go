package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/middleware"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/session"
	"github.com/stemsi/tryout-backend/internal/validator"
)

// ParticipantHandler handles participant-facing endpoints (dashboard, exam taking, results).
type ParticipantHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	resultService  *service.ResultService
	log            zerolog.Logger
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(
	examService *service.ExamService,
	sessionService *service.ExamSessionService,
	resultService *service.ResultService,
	log zerolog.Logger,
) *ParticipantHandler {
	return &ParticipantHandler{
		examService:    examService,
		sessionService: sessionService,
		resultService:  resultService,
		log:            log.With().Str("component", "participant_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/tryout/exams
// Returns the published exams of the participant's packages with their latest results.
func (h *ParticipantHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.examService.ListForParticipant(c.Request.Context(), claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/tryout/exams/:exam_id
// Returns a published exam of the participant's packages with its questions
// and options, correct answers hidden.
func (h *ParticipantHandler) GetExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	paper, err := h.examService.PaperFor(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// StartSession godoc
// POST /api/v1/tryout/exams/:exam_id/session
// Resumes the running session of the exam or starts a new one.
func (h *ParticipantHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessionService.StartOrResume(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// LatestSession godoc
// GET /api/v1/tryout/exams/:exam_id/latest-session
// Returns the participant's most recent session for the exam.
func (h *ParticipantHandler) LatestSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessionService.LatestSession(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// LatestResult godoc
// GET /api/v1/tryout/exams/:exam_id/latest-result
// Returns the participant's most recent result for the exam.
func (h *ParticipantHandler) LatestResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	res, err := h.sessionService.LatestResult(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}

// GetSession godoc
// GET /api/v1/tryout/sessions/:session_id
// Returns one of the participant's sessions with its answers.
func (h *ParticipantHandler) GetSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessionService.GetSession(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	var remainingMS *int64
	if d, ok := session.Remaining(sess, time.Now()); ok {
		ms := d.Milliseconds()
		remainingMS = &ms
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess, "remaining_ms": remainingMS})
}

// RecordAnswer godoc
// PUT /api/v1/tryout/sessions/:session_id/answers
// Sets the answer to one question, or clears it when option_id is null.
func (h *ParticipantHandler) RecordAnswer(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.sessionService.RecordAnswer(c.Request.Context(), claims.UserID, sessionID, req.QuestionID, req.OptionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// CompleteSession godoc
// POST /api/v1/tryout/sessions/:session_id/complete
// Finishes the session, grades it and returns where to show the result.
func (h *ParticipantHandler) CompleteSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, res, err := h.sessionService.Complete(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":  sess,
		"result":   res,
		"redirect": session.ResultPath(sess.ExamID, sess.ID),
	})
}

// GetResult godoc
// GET /api/v1/tryout/sessions/:session_id/result
// Returns the result view: score, pass/fail, time taken and per-question outcomes.
func (h *ParticipantHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	view, err := h.resultService.View(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}
