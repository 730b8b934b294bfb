package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/grading"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPassed(t *testing.T) {
	require.True(t, Passed(72, 70))
	require.True(t, Passed(70, 70))
	require.False(t, Passed(69, 70))
	require.True(t, Passed(0, 0))
}

func TestTimeTaken(t *testing.T) {
	_, ok := TimeTaken(&model.ExamSession{StartedAt: t0})
	require.False(t, ok)

	done := t0.Add(42*time.Minute + 10*time.Second)
	d, ok := TimeTaken(&model.ExamSession{StartedAt: t0, CompletedAt: &done})
	require.True(t, ok)
	require.Equal(t, 42*time.Minute+10*time.Second, d)
}

func TestBuildResultView(t *testing.T) {
	questions := makeQuestions(4)
	exam := model.Exam{ID: uuid.New(), Title: "Tryout Matematika", PassingScore: 70}
	detail := &model.ExamDetail{Exam: exam, Questions: questions}

	done := t0.Add(30 * time.Minute)
	sess := &model.ExamSession{
		ID:          uuid.New(),
		ExamID:      exam.ID,
		Status:      model.SessionStatusCompleted,
		StartedAt:   t0,
		CompletedAt: &done,
		UserAnswers: model.AnswerMap{
			questions[0].ID: questions[0].Options[0].ID,
			questions[1].ID: questions[1].Options[0].ID,
			questions[2].ID: questions[2].Options[0].ID,
			questions[3].ID: questions[3].Options[1].ID,
		},
	}
	res := grading.Grade(questions, sess.UserAnswers).Result(sess)

	v := BuildResultView(detail, sess, res)
	require.Equal(t, 75, v.Result.Score)
	require.True(t, v.Passed)
	require.Equal(t, int64(1800), *v.TimeTakenSeconds)
	require.Len(t, v.Questions, 4)
	require.True(t, v.Questions[0].Outcome.IsCorrect)
	require.False(t, v.Questions[3].Outcome.IsCorrect)
	require.Equal(t, questions[3].Options[1].ID, *v.Questions[3].Outcome.SelectedOptionID)
	require.Equal(t, questions[3].Options[0].ID, *v.Questions[3].Outcome.CorrectOptionID)
}

func TestResultPath(t *testing.T) {
	exam := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	sess := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	require.Equal(t,
		"/tryout/11111111-1111-1111-1111-111111111111/result?session=22222222-2222-2222-2222-222222222222",
		ResultPath(exam, sess))
}
