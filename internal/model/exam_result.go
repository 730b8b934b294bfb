package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamResult is produced once per finished session and never changes.
type ExamResult struct {
	ID                uuid.UUID         `json:"id"`
	SessionID         uuid.UUID         `json:"session_id"`
	ExamID            uuid.UUID         `json:"exam_id"`
	UserID            uuid.UUID         `json:"user_id"`
	Score             int               `json:"score"`
	TotalQuestions    int               `json:"total_questions"`
	CorrectCount      int               `json:"correct_count"`
	IncorrectCount    int               `json:"incorrect_count"`
	DetailedBreakdown []QuestionOutcome `json:"detailed_breakdown,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// QuestionOutcome is the graded outcome of one question.
type QuestionOutcome struct {
	QuestionID       uuid.UUID  `json:"question_id"`
	SelectedOptionID *uuid.UUID `json:"selected_option_id"`
	CorrectOptionID  *uuid.UUID `json:"correct_option_id"`
	IsCorrect        bool       `json:"is_correct"`
}
