package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/grading"
	"github.com/stemsi/tryout-backend/internal/model"
)

var errStoreDown = errors.New("store unavailable")

// fakeRemote is an in-memory exam store holding one exam.
type fakeRemote struct {
	mu        sync.Mutex
	questions []model.Question
	sessions  map[uuid.UUID]*model.ExamSession
	now       func() time.Time

	recordCalls   int
	completeCalls int
	recordErr     error
	completeErr   error
	// completeGate, when set, blocks Complete until it is closed.
	completeGate chan struct{}
}

func newFakeRemote(questions []model.Question, now func() time.Time) *fakeRemote {
	return &fakeRemote{
		questions: questions,
		sessions:  make(map[uuid.UUID]*model.ExamSession),
		now:       now,
	}
}

func (f *fakeRemote) start(examID, userID uuid.UUID, duration time.Duration) *model.ExamSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	s := &model.ExamSession{
		ID:          uuid.New(),
		ExamID:      examID,
		UserID:      userID,
		Status:      model.SessionStatusInProgress,
		StartedAt:   now,
		ExpiresAt:   now.Add(duration),
		UserAnswers: model.AnswerMap{},
		Revision:    1,
	}
	f.sessions[s.ID] = s
	return s.Clone()
}

func (f *fakeRemote) RecordAnswer(ctx context.Context, userID, sessionID, questionID uuid.UUID, optionID *uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordCalls++
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, model.ErrSessionNotFound
	}
	if s.Status != model.SessionStatusInProgress || !f.now().Before(s.ExpiresAt) {
		return nil, model.ErrSessionNotInProgress
	}
	if optionID == nil {
		delete(s.UserAnswers, questionID)
	} else {
		s.UserAnswers[questionID] = *optionID
	}
	s.Revision++
	return s.Clone(), nil
}

func (f *fakeRemote) Complete(ctx context.Context, userID, sessionID uuid.UUID) (*model.ExamSession, *model.ExamResult, error) {
	f.mu.Lock()
	f.completeCalls++
	gate := f.completeGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, nil, f.completeErr
	}
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil, model.ErrSessionNotFound
	}
	now := f.now()
	s.Status = model.SessionStatusCompleted
	s.CompletedAt = &now
	s.Revision++

	res := grading.Grade(f.questions, s.UserAnswers).Result(s)
	res.ID = uuid.New()
	res.CreatedAt = now
	return s.Clone(), res, nil
}

func (f *fakeRemote) calls() (record, complete int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordCalls, f.completeCalls
}

func (f *fakeRemote) setCompleteErr(err error) {
	f.mu.Lock()
	f.completeErr = err
	f.mu.Unlock()
}

// recorder collects emitted events and notices.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) Notify(n Notice) {
	r.Emit(Event{Type: EventNotice, Payload: n})
}

func (r *recorder) of(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) notices() []Notice {
	var out []Notice
	for _, e := range r.of(EventNotice) {
		out = append(out, e.Payload.(Notice))
	}
	return out
}

func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{ID: uuid.New(), QuestionText: "Pertanyaan nomor satu"}
		for j := 0; j < model.OptionsPerQuestion; j++ {
			qs[i].Options = append(qs[i].Options, model.Option{
				ID:         uuid.New(),
				QuestionID: qs[i].ID,
				OptionText: "Pilihan",
				IsCorrect:  j == 0,
			})
		}
	}
	return qs
}
