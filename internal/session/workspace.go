package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/tryout-backend/internal/model"
	"k8s.io/utils/clock"
)

// EventType names a server-to-participant event.
type EventType string

const (
	EventSession    EventType = "session"
	EventTick       EventType = "tick"
	EventNavigation EventType = "navigation"
	EventNotice     EventType = "notice"
	EventCompleted  EventType = "completed"
)

// Event is emitted by a Workspace.
type Event struct {
	Type    EventType
	Payload any
}

// TickPayload carries the countdown; RemainingMS is nil when there is no timer.
type TickPayload struct {
	RemainingMS *int64 `json:"remaining_ms"`
}

// NavigationPayload carries the current question position.
type NavigationPayload struct {
	Index      int        `json:"index"`
	Total      int        `json:"total"`
	QuestionID *uuid.UUID `json:"question_id"`
}

// CompletedPayload tells the participant where the result lives.
type CompletedPayload struct {
	Redirect string            `json:"redirect"`
	Result   *model.ExamResult `json:"result"`
}

// Emitter delivers events to the participant. Emit is called from several
// goroutines and must not block for long.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) { f(e) }

// Options configures a Workspace.
type Options struct {
	Clock  clock.WithTicker
	Logger zerolog.Logger
}

// Workspace is one open exam page: it binds the countdown, the automatic
// submission, answer recording, manual completion and navigation to a shared
// session cache. Its lifetime bounds the timer.
type Workspace struct {
	registry *Registry
	cache    *Cache
	emitter  Emitter

	timer      *Timer
	controller *Controller
	completer  *Completer
	coord      *Coordinator

	mu          sync.Mutex
	paper       *model.ExamPaper
	nav         *Navigator
	completed   bool
	closed      bool
	unsubscribe func()
}

// Open attaches a workspace to sess and emits the initial state.
func Open(registry *Registry, remote Remote, userID uuid.UUID, paper *model.ExamPaper, sess *model.ExamSession, emitter Emitter, opts Options) *Workspace {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	log := opts.Logger.With().
		Str("session_id", sess.ID.String()).
		Str("user_id", userID.String()).
		Logger()

	w := &Workspace{
		registry: registry,
		emitter:  emitter,
		paper:    paper,
		nav:      NewNavigator(len(paper.Questions)),
	}
	w.cache = registry.Acquire(sess)

	notify := NotifierFunc(func(n Notice) {
		emitter.Emit(Event{Type: EventNotice, Payload: n})
	})
	w.controller = NewController(w.cache, remote, userID, notify, log)
	w.completer = NewCompleter(w.cache, remote, userID, notify, log)
	w.coord = NewCoordinator(w.cache, w.completer, notify)
	w.timer = NewTimer(opts.Clock, w.onTick)

	w.unsubscribe = w.cache.Subscribe(w.onUpdate)

	current := w.cache.Session()
	emitter.Emit(Event{Type: EventSession, Payload: current})
	w.emitNavigation()
	if res, redirect := w.cache.Result(); res != nil {
		w.emitCompleted(res, redirect)
	}
	w.timer.Reset(current)
	return w
}

// SessionID returns the identity of the attached session.
func (w *Workspace) SessionID() uuid.UUID { return w.cache.ID() }

// Session returns a copy of the cached session.
func (w *Workspace) Session() *model.ExamSession { return w.cache.Session() }

// Answer selects optionID for questionID.
func (w *Workspace) Answer(ctx context.Context, questionID, optionID uuid.UUID) error {
	if !w.hasOption(questionID, optionID) {
		w.emitter.Emit(Event{Type: EventNotice, Payload: NoticeInvalidAnswer})
		return model.ErrInvalidAnswer
	}
	return w.controller.SetAnswer(ctx, questionID, &optionID)
}

// Clear removes the answer to questionID.
func (w *Workspace) Clear(ctx context.Context, questionID uuid.UUID) error {
	return w.controller.SetAnswer(ctx, questionID, nil)
}

// Submit completes the session on the participant's request.
func (w *Workspace) Submit(ctx context.Context) (*Completion, error) {
	return w.completer.Complete(ctx)
}

// Goto moves to question index i.
func (w *Workspace) Goto(i int) {
	w.mu.Lock()
	w.nav.Goto(i)
	w.mu.Unlock()
	w.emitNavigation()
}

// Next moves to the following question.
func (w *Workspace) Next() {
	w.mu.Lock()
	w.nav.Next()
	w.mu.Unlock()
	w.emitNavigation()
}

// Prev moves to the preceding question.
func (w *Workspace) Prev() {
	w.mu.Lock()
	w.nav.Prev()
	w.mu.Unlock()
	w.emitNavigation()
}

// Refresh replaces the exam paper after a refetch and re-clamps navigation.
func (w *Workspace) Refresh(paper *model.ExamPaper) {
	w.mu.Lock()
	w.paper = paper
	w.nav.Resize(len(paper.Questions))
	w.mu.Unlock()
	w.emitNavigation()
}

// Close stops the timer and releases the session cache.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.timer.Stop()
	w.unsubscribe()
	w.registry.Release(w.cache)
}

func (w *Workspace) onTick(t Tick) {
	w.emitter.Emit(Event{Type: EventTick, Payload: TickPayload{RemainingMS: t.RemainingMillis()}})
	w.coord.Observe(t)
}

func (w *Workspace) onUpdate(u Update) {
	w.emitter.Emit(Event{Type: EventSession, Payload: u.Session})
	w.timer.Reset(u.Session)
	if u.Result != nil {
		w.emitCompleted(u.Result, u.Redirect)
	}
}

func (w *Workspace) emitCompleted(res *model.ExamResult, redirect string) {
	w.mu.Lock()
	already := w.completed
	w.completed = true
	w.mu.Unlock()
	if already {
		return
	}
	w.emitter.Emit(Event{Type: EventCompleted, Payload: CompletedPayload{Redirect: redirect, Result: res}})
}

func (w *Workspace) emitNavigation() {
	w.mu.Lock()
	p := NavigationPayload{Index: w.nav.Index(), Total: w.nav.Total()}
	if p.Total > 0 {
		id := w.paper.Questions[p.Index].ID
		p.QuestionID = &id
	}
	w.mu.Unlock()
	w.emitter.Emit(Event{Type: EventNavigation, Payload: p})
}

func (w *Workspace) hasOption(questionID, optionID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, q := range w.paper.Questions {
		if q.ID != questionID {
			continue
		}
		for _, o := range q.Options {
			if o.ID == optionID {
				return true
			}
		}
		return false
	}
	return false
}
