// Package grading scores a set of answers against an exam's answer key.
package grading

import (
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Report is the outcome of grading one session.
type Report struct {
	Score          int
	TotalQuestions int
	CorrectCount   int
	IncorrectCount int
	Breakdown      []model.QuestionOutcome
}

// Grade scores answers against questions. Score is the rounded percentage of
// correct answers; unanswered questions count as incorrect. An exam with no
// questions scores zero.
func Grade(questions []model.Question, answers model.AnswerMap) Report {
	r := Report{
		TotalQuestions: len(questions),
		Breakdown:      make([]model.QuestionOutcome, 0, len(questions)),
	}

	for i := range questions {
		q := &questions[i]
		outcome := model.QuestionOutcome{QuestionID: q.ID}

		if correct := q.CorrectOption(); correct != nil {
			id := correct.ID
			outcome.CorrectOptionID = &id
		}
		if selected, ok := answers[q.ID]; ok {
			id := selected
			outcome.SelectedOptionID = &id
		}
		outcome.IsCorrect = outcome.SelectedOptionID != nil &&
			outcome.CorrectOptionID != nil &&
			*outcome.SelectedOptionID == *outcome.CorrectOptionID

		if outcome.IsCorrect {
			r.CorrectCount++
		}
		r.Breakdown = append(r.Breakdown, outcome)
	}

	r.IncorrectCount = r.TotalQuestions - r.CorrectCount
	if r.TotalQuestions > 0 {
		r.Score = int(math.Round(float64(r.CorrectCount) * 100 / float64(r.TotalQuestions)))
	}
	return r
}

// Result converts the report into a result row for the given session.
func (r Report) Result(sess *model.ExamSession) *model.ExamResult {
	return &model.ExamResult{
		SessionID:         sess.ID,
		ExamID:            sess.ExamID,
		UserID:            sess.UserID,
		Score:             r.Score,
		TotalQuestions:    r.TotalQuestions,
		CorrectCount:      r.CorrectCount,
		IncorrectCount:    r.IncorrectCount,
		DetailedBreakdown: r.Breakdown,
	}
}

// Outcomes rebuilds per-question outcomes from a stored result, falling back
// to regrading when the stored breakdown is missing a question.
func Outcomes(questions []model.Question, answers model.AnswerMap, stored []model.QuestionOutcome) []model.QuestionOutcome {
	byQuestion := make(map[uuid.UUID]model.QuestionOutcome, len(stored))
	for _, o := range stored {
		byQuestion[o.QuestionID] = o
	}

	regraded := Grade(questions, answers).Breakdown
	out := make([]model.QuestionOutcome, len(questions))
	for i, q := range questions {
		if o, ok := byQuestion[q.ID]; ok {
			out[i] = o
			continue
		}
		out[i] = regraded[i]
	}
	return out
}
