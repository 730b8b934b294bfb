package session

import (
	"time"

	"github.com/stemsi/tryout-backend/internal/grading"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Passed reports whether score meets the passing score. The boundary passes.
func Passed(score, passingScore int) bool {
	return score >= passingScore
}

// TimeTaken returns completed_at - started_at, or false while the session
// has not finished.
func TimeTaken(sess *model.ExamSession) (time.Duration, bool) {
	if sess == nil || sess.CompletedAt == nil {
		return 0, false
	}
	d := sess.CompletedAt.Sub(sess.StartedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// QuestionReview pairs a question, with its answer key, and the outcome.
type QuestionReview struct {
	model.Question
	Outcome model.QuestionOutcome `json:"outcome"`
}

// ResultView is what a participant sees after finishing a session.
type ResultView struct {
	Exam             model.Exam         `json:"exam"`
	Session          *model.ExamSession `json:"session"`
	Result           *model.ExamResult  `json:"result"`
	Passed           bool               `json:"passed"`
	TimeTakenSeconds *int64             `json:"time_taken_seconds"`
	Questions        []QuestionReview   `json:"questions"`
}

// BuildResultView assembles the result view from the revealed exam detail,
// the finished session and its result.
func BuildResultView(detail *model.ExamDetail, sess *model.ExamSession, res *model.ExamResult) *ResultView {
	v := &ResultView{
		Exam:    detail.Exam,
		Session: sess,
		Result:  res,
		Passed:  Passed(res.Score, detail.Exam.PassingScore),
	}

	if d, ok := TimeTaken(sess); ok {
		secs := int64(d / time.Second)
		v.TimeTakenSeconds = &secs
	}

	var answers model.AnswerMap
	if sess != nil {
		answers = sess.UserAnswers
	}
	outcomes := grading.Outcomes(detail.Questions, answers, res.DetailedBreakdown)

	v.Questions = make([]QuestionReview, len(detail.Questions))
	for i, q := range detail.Questions {
		v.Questions[i] = QuestionReview{Question: q, Outcome: outcomes[i]}
	}
	return v
}
