package grading

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func question(correctIdx int) (model.Question, []uuid.UUID) {
	q := model.Question{ID: uuid.New()}
	ids := make([]uuid.UUID, model.OptionsPerQuestion)
	for i := range ids {
		ids[i] = uuid.New()
		q.Options = append(q.Options, model.Option{ID: ids[i], QuestionID: q.ID, IsCorrect: i == correctIdx})
	}
	return q, ids
}

func TestGrade(t *testing.T) {
	q1, o1 := question(0)
	q2, o2 := question(1)
	q3, _ := question(2)
	q4, o4 := question(3)
	questions := []model.Question{q1, q2, q3, q4}

	answers := model.AnswerMap{
		q1.ID: o1[0], // correct
		q2.ID: o2[0], // wrong
		q4.ID: o4[3], // correct
	}

	r := Grade(questions, answers)
	require.Equal(t, 4, r.TotalQuestions)
	require.Equal(t, 2, r.CorrectCount)
	require.Equal(t, 2, r.IncorrectCount)
	require.Equal(t, 50, r.Score)
	require.Len(t, r.Breakdown, 4)

	require.True(t, r.Breakdown[0].IsCorrect)
	require.False(t, r.Breakdown[1].IsCorrect)
	require.Equal(t, o2[0], *r.Breakdown[1].SelectedOptionID)
	require.Equal(t, o2[1], *r.Breakdown[1].CorrectOptionID)
	require.Nil(t, r.Breakdown[2].SelectedOptionID)
	require.False(t, r.Breakdown[2].IsCorrect)
}

func TestGradeRounds(t *testing.T) {
	var questions []model.Question
	answers := model.AnswerMap{}
	for i := 0; i < 3; i++ {
		q, ids := question(0)
		questions = append(questions, q)
		if i < 2 {
			answers[q.ID] = ids[0]
		}
	}
	require.Equal(t, 67, Grade(questions, answers).Score)
}

func TestGradeNoQuestions(t *testing.T) {
	r := Grade(nil, model.AnswerMap{uuid.New(): uuid.New()})
	require.Zero(t, r.Score)
	require.Zero(t, r.TotalQuestions)
	require.Empty(t, r.Breakdown)
}

func TestOutcomesPrefersStored(t *testing.T) {
	q1, o1 := question(0)
	q2, o2 := question(0)
	stored := []model.QuestionOutcome{{QuestionID: q1.ID, SelectedOptionID: &o1[2], CorrectOptionID: &o1[0]}}

	out := Outcomes([]model.Question{q1, q2}, model.AnswerMap{q2.ID: o2[0]}, stored)
	require.Len(t, out, 2)
	require.Equal(t, o1[2], *out[0].SelectedOptionID)
	require.True(t, out[1].IsCorrect)
}
