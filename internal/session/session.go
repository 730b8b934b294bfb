// Package session holds the participant-side state machine of a running exam:
// the countdown, answer synchronization, automatic submission on expiry,
// manual completion, question navigation and result presentation.
//
// The package talks to storage only through Remote, and to the participant
// only through Emitter, so it is independent of both the store and the
// transport.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
)

// ErrCompletionPending is returned when a completion for the session is
// already in flight.
var ErrCompletionPending = errors.New("completion already in flight")

// Remote is the subset of the exam store the session core depends on.
// Every call is scoped to the participant that owns the session.
type Remote interface {
	RecordAnswer(ctx context.Context, userID, sessionID, questionID uuid.UUID, optionID *uuid.UUID) (*model.ExamSession, error)
	Complete(ctx context.Context, userID, sessionID uuid.UUID) (*model.ExamSession, *model.ExamResult, error)
}

// Level classifies a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing message produced by the session core.
type Notice struct {
	Level   Level  `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	NoticeNotInProgress = Notice{Level: LevelWarning, Code: "SESSION_NOT_IN_PROGRESS", Message: "Sesi ujian sudah selesai."}
	NoticeAutoSubmit    = Notice{Level: LevelInfo, Code: "AUTO_SUBMIT", Message: "Waktu ujian telah berakhir. Mengirim jawaban Anda..."}
	NoticeSaveFailed    = Notice{Level: LevelError, Code: "SAVE_FAILED", Message: "Gagal menyimpan jawaban. Silakan coba lagi."}
	NoticeInvalidAnswer = Notice{Level: LevelError, Code: "INVALID_ANSWER", Message: "Jawaban tidak sesuai dengan soal ujian."}
	NoticeSubmitFailed  = Notice{Level: LevelError, Code: "SUBMIT_FAILED", Message: "Gagal mengirim jawaban. Silakan coba lagi."}
	NoticeSubmitPending = Notice{Level: LevelInfo, Code: "SUBMIT_PENDING", Message: "Jawaban Anda sedang dikirim."}
)

// Notifier receives notices addressed to a single participant view.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// bind derives a context from ctx that is also cancelled when scope ends.
func bind(ctx, scope context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(scope, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
