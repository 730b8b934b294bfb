package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
	"k8s.io/utils/clock"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

// Remaining returns the time left before sess expires, floored at zero. The
// boolean is false when there is no timer: no session, a session that is not
// in progress, or one without an expiry.
func Remaining(sess *model.ExamSession, now time.Time) (time.Duration, bool) {
	if sess == nil || sess.Status != model.SessionStatusInProgress || sess.ExpiresAt.IsZero() {
		return 0, false
	}
	d := sess.ExpiresAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Tick is one countdown observation.
type Tick struct {
	Remaining time.Duration
	Active    bool
}

// RemainingMillis returns the remaining time in milliseconds, or nil when the
// timer is inactive.
func (t Tick) RemainingMillis() *int64 {
	if !t.Active {
		return nil
	}
	ms := t.Remaining.Milliseconds()
	return &ms
}

type timerKey struct {
	id     uuid.UUID
	status model.SessionStatus
}

// Timer drives the countdown of one view. It holds at most one ticker; the
// ticker is replaced only when the session identity or status changes.
type Timer struct {
	clock  clock.WithTicker
	onTick func(Tick)

	mu   sync.Mutex
	key  timerKey
	gen  uint64
	stop chan struct{}
}

// NewTimer creates a stopped Timer.
func NewTimer(clk clock.WithTicker, onTick func(Tick)) *Timer {
	return &Timer{clock: clk, onTick: onTick}
}

// Reset points the timer at sess. An inactive session stops the ticker and
// reports a single inactive tick.
func (t *Timer) Reset(sess *model.ExamSession) {
	var key timerKey
	if sess != nil {
		key = timerKey{id: sess.ID, status: sess.Status}
	}

	t.mu.Lock()
	if t.stop != nil && key == t.key {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	t.key = key

	if _, ok := Remaining(sess, t.clock.Now()); !ok {
		t.mu.Unlock()
		t.onTick(Tick{})
		return
	}

	t.gen++
	t.stop = make(chan struct{})
	go t.run(t.gen, t.stop, sess.ExpiresAt)
	t.mu.Unlock()
}

// Stop releases the ticker.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopLocked()
	t.key = timerKey{}
	t.mu.Unlock()
}

// Running reports whether a ticker is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop != nil
}

func (t *Timer) stopLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

func (t *Timer) run(gen uint64, stop <-chan struct{}, expiresAt time.Time) {
	ticker := t.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	t.emit(gen, expiresAt)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			t.emit(gen, expiresAt)
		}
	}
}

func (t *Timer) emit(gen uint64, expiresAt time.Time) {
	t.mu.Lock()
	current := t.stop != nil && t.gen == gen
	t.mu.Unlock()
	if !current {
		return
	}

	d := expiresAt.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}
	t.onTick(Tick{Remaining: d, Active: true})
}
