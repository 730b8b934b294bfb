package model

import "errors"

// Domain errors shared by the store, the services and the session core.
var (
	ErrExamNotFound         = errors.New("exam not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrSessionNotFound      = errors.New("exam session not found")
	ErrSessionNotInProgress = errors.New("exam session is not in progress")
	ErrResultNotReady       = errors.New("exam result is not ready")
	ErrMaxAttemptsReached   = errors.New("maximum number of attempts reached")
	ErrInvalidAnswer        = errors.New("answer does not belong to the exam")
	ErrExamNotPublished     = errors.New("exam is not published")
	ErrPackageLocked        = errors.New("exam package not purchased")
	ErrNoQuestions          = errors.New("exam has no questions")
)
