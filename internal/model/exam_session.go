package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusExpired    SessionStatus = "expired"
)

// Finished reports whether the status is terminal.
func (s SessionStatus) Finished() bool {
	return s == SessionStatusCompleted || s == SessionStatusExpired
}

// ExamSession represents a single timed attempt by a user at one exam.
// It is only ever mutated by the start/record/complete operations of the store.
type ExamSession struct {
	ID          uuid.UUID     `json:"id"`
	ExamID      uuid.UUID     `json:"exam_id"`
	UserID      uuid.UUID     `json:"user_id"`
	Status      SessionStatus `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CompletedAt *time.Time    `json:"completed_at"`
	UserAnswers AnswerMap     `json:"user_answers"`
	// Revision increases with every store mutation of the row.
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so cached snapshots are never shared.
func (s *ExamSession) Clone() *ExamSession {
	if s == nil {
		return nil
	}
	c := *s
	c.UserAnswers = s.UserAnswers.Clone()
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// AnswerMap maps question identity to selected option identity. It is sparse:
// unanswered questions have no entry.
type AnswerMap map[uuid.UUID]uuid.UUID

// Clone copies the map.
func (m AnswerMap) Clone() AnswerMap {
	c := make(AnswerMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// UnmarshalJSON keeps only well-formed string entries and silently drops
// anything else (null values, numbers, malformed IDs).
func (m *AnswerMap) UnmarshalJSON(data []byte) error {
	out := AnswerMap{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Non-object payloads (null, arrays) are treated as "no answers".
		*m = out
		return nil
	}
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		qid, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		oid, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		out[qid] = oid
	}
	*m = out
	return nil
}

// AnswerRequest records or clears the answer to one question.
// A null option_id clears the answer.
type AnswerRequest struct {
	QuestionID uuid.UUID  `json:"question_id" binding:"required"`
	OptionID   *uuid.UUID `json:"option_id"`
}
