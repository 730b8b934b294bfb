package model

import (
	"time"

	"github.com/google/uuid"
)

// OptionsPerQuestion is the fixed number of answer choices per question.
const OptionsPerQuestion = 4

// Question represents a single exam question with its options.
type Question struct {
	ID           uuid.UUID `json:"id"`
	ExamID       uuid.UUID `json:"exam_id"`
	QuestionText string    `json:"question_text"`
	Explanation  *string   `json:"explanation"`
	Order        *int      `json:"order"`
	CreatedAt    time.Time `json:"created_at"`
	Options      []Option  `json:"question_options"`
}

// CorrectOption returns the option flagged correct, if any.
func (q *Question) CorrectOption() *Option {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// HasOption reports whether optionID belongs to this question.
func (q *Question) HasOption(optionID uuid.UUID) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Option is one answer choice of a question, ordered by creation time.
type Option struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	OptionText string    `json:"option_text"`
	IsCorrect  bool      `json:"is_correct"`
	CreatedAt  time.Time `json:"created_at"`
}

// QuestionForParticipant is a question without the correct answer.
type QuestionForParticipant struct {
	ID           uuid.UUID              `json:"id"`
	QuestionText string                 `json:"question_text"`
	Order        *int                   `json:"order"`
	Options      []OptionForParticipant `json:"question_options"`
}

// OptionForParticipant is an answer choice without its correct flag.
type OptionForParticipant struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"option_text"`
}

// OptionInput is a single option in a question payload.
type OptionInput struct {
	OptionText string `json:"option_text" binding:"required,min=1,max=1000"`
	IsCorrect  bool   `json:"is_correct"`
}

// QuestionRequest is the payload for creating or updating a question together
// with exactly four options. The one-correct rule is a struct-level validation.
type QuestionRequest struct {
	QuestionText string        `json:"question_text" binding:"required,min=10,max=5000"`
	Explanation  *string       `json:"explanation" binding:"omitempty,max=500"`
	Order        *int          `json:"order" binding:"omitempty,min=0"`
	Options      []OptionInput `json:"options" binding:"required,len=4,dive"`
}

// CorrectCount returns how many options are flagged correct.
func (r *QuestionRequest) CorrectCount() int {
	n := 0
	for _, o := range r.Options {
		if o.IsCorrect {
			n++
		}
	}
	return n
}
