package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
	"github.com/stemsi/tryout-backend/internal/service"
	"github.com/stemsi/tryout-backend/internal/session"
)

type errMapping struct {
	err    error
	status int
	code   response.ErrCode
}

var domainErrors = []errMapping{
	{model.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{model.ErrQuestionNotFound, http.StatusNotFound, response.ErrNotFound},
	{model.ErrSessionNotFound, http.StatusNotFound, response.ErrSessionNotFound},
	{model.ErrResultNotReady, http.StatusNotFound, response.ErrResultNotReady},
	{service.ErrProfileNotFound, http.StatusNotFound, response.ErrNotFound},
	{model.ErrSessionNotInProgress, http.StatusConflict, response.ErrSessionNotInProgress},
	{session.ErrCompletionPending, http.StatusConflict, response.ErrConflict},
	{model.ErrMaxAttemptsReached, http.StatusConflict, response.ErrMaxAttemptsReached},
	{model.ErrExamNotPublished, http.StatusForbidden, response.ErrExamNotPublished},
	{model.ErrPackageLocked, http.StatusForbidden, response.ErrPackageLocked},
	{model.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{model.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer},
	{service.ErrInvalidOptions, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
}

// failWithError maps a service error onto the response envelope. Anything
// unknown is logged and reported as an internal error.
func failWithError(c *gin.Context, log zerolog.Logger, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}
	log.Error().Err(err).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString(response.ContextKeyRequestID)).
		Msg("Request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
