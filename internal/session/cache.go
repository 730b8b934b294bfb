package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/model"
)

// Update is broadcast to every view of a session whenever the cached state
// changes.
type Update struct {
	Session  *model.ExamSession
	Result   *model.ExamResult
	Redirect string
}

// Cache is the shared in-process state of one exam session. It outlives any
// single view: the auto-submit flag and in-flight completions belong to the
// cache, and disposing it cancels every call still running on its behalf.
type Cache struct {
	mu            sync.Mutex
	sess          *model.ExamSession
	result        *model.ExamResult
	redirect      string
	issued        uint64
	applied       uint64
	autoSubmitted bool
	completing    bool
	listeners     map[uint64]func(Update)
	nextListener  uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCache seeds a cache with a session snapshot.
func NewCache(sess *model.ExamSession) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		sess:      sess.Clone(),
		listeners: make(map[uint64]func(Update)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ID returns the session identity.
func (c *Cache) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.ID
}

// Session returns a copy of the cached session.
func (c *Cache) Session() *model.ExamSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// Result returns the cached result and its redirect, if the session finished.
func (c *Cache) Result() (*model.ExamResult, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.redirect
}

// Context is cancelled when the cache is disposed.
func (c *Cache) Context() context.Context { return c.ctx }

// Disposed reports whether Dispose has been called.
func (c *Cache) Disposed() bool { return c.ctx.Err() != nil }

// Dispose cancels in-flight calls and drops all listeners.
func (c *Cache) Dispose() {
	c.cancel()
	c.mu.Lock()
	c.listeners = make(map[uint64]func(Update))
	c.mu.Unlock()
}

// Subscribe registers fn for updates and returns its cancellation.
func (c *Cache) Subscribe(fn func(Update)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Issue reserves the next request number for a store call.
func (c *Cache) Issue() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued++
	return c.issued
}

// Apply replaces the cached session with the response to request seq. Stale
// responses are discarded: a lower store revision always loses, and for equal
// revisions the later request wins.
func (c *Cache) Apply(seq uint64, sess *model.ExamSession) bool {
	c.mu.Lock()
	if sess == nil || sess.ID != c.sess.ID {
		c.mu.Unlock()
		return false
	}
	if sess.Revision < c.sess.Revision || (sess.Revision == c.sess.Revision && seq < c.applied) {
		c.mu.Unlock()
		return false
	}
	if seq > c.applied {
		c.applied = seq
	}
	c.sess = sess.Clone()
	u := c.updateLocked()
	fns := c.listenersLocked()
	c.mu.Unlock()

	publish(fns, u)
	return true
}

// Observe applies a snapshot that did not originate from this cache's own
// requests. Only strictly newer revisions are taken.
func (c *Cache) Observe(sess *model.ExamSession) bool {
	c.mu.Lock()
	if sess == nil || sess.ID != c.sess.ID || sess.Revision <= c.sess.Revision {
		c.mu.Unlock()
		return false
	}
	c.sess = sess.Clone()
	u := c.updateLocked()
	fns := c.listenersLocked()
	c.mu.Unlock()

	publish(fns, u)
	return true
}

// TryAutoSubmit claims the one automatic submission of this session. It
// succeeds only while the session is in progress, nothing is completing and
// no automatic submission was claimed before.
func (c *Cache) TryAutoSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Status != model.SessionStatusInProgress || c.completing || c.autoSubmitted {
		return false
	}
	c.autoSubmitted = true
	c.completing = true
	return true
}

// AutoSubmitted reports whether the automatic submission was claimed.
func (c *Cache) AutoSubmitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoSubmitted
}

// BeginCompletion marks a completion as in flight. It fails when one already is.
func (c *Cache) BeginCompletion() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completing {
		return false
	}
	c.completing = true
	return true
}

// EndCompletion clears the in-flight mark after a failed completion.
func (c *Cache) EndCompletion() {
	c.mu.Lock()
	c.completing = false
	c.mu.Unlock()
}

// Completing reports whether a completion is in flight.
func (c *Cache) Completing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completing
}

// Finish records a successful completion and broadcasts it.
func (c *Cache) Finish(sess *model.ExamSession, result *model.ExamResult, redirect string) {
	c.mu.Lock()
	if sess != nil && sess.ID == c.sess.ID && sess.Revision >= c.sess.Revision {
		c.sess = sess.Clone()
	}
	c.result = result
	c.redirect = redirect
	c.completing = false
	u := c.updateLocked()
	fns := c.listenersLocked()
	c.mu.Unlock()

	publish(fns, u)
}

func (c *Cache) updateLocked() Update {
	return Update{Session: c.sess.Clone(), Result: c.result, Redirect: c.redirect}
}

func (c *Cache) listenersLocked() []func(Update) {
	fns := make([]func(Update), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func publish(fns []func(Update), u Update) {
	for _, fn := range fns {
		fn(u)
	}
}

// ─── Registry ───────────────────────────────────────────────────────

// Registry hands out one Cache per session and disposes it when the last
// view releases it.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

type entry struct {
	cache *Cache
	refs  int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]*entry)}
}

// Acquire returns the cache of sess.ID, creating it from sess when absent.
// An existing cache takes sess only when it is newer.
func (r *Registry) Acquire(sess *model.ExamSession) *Cache {
	r.mu.Lock()
	e, ok := r.entries[sess.ID]
	if !ok {
		e = &entry{cache: NewCache(sess)}
		r.entries[sess.ID] = e
	}
	e.refs++
	r.mu.Unlock()

	if ok {
		e.cache.Observe(sess)
	}
	return e.cache
}

// Release drops one reference and disposes the cache on the last one.
func (r *Registry) Release(c *Cache) {
	id := c.ID()

	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.cache != c {
		r.mu.Unlock()
		return
	}
	e.refs--
	last := e.refs <= 0
	if last {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if last {
		c.Dispose()
	}
}

// Lookup returns the live cache of a session, or nil.
func (r *Registry) Lookup(id uuid.UUID) *Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e.cache
	}
	return nil
}

// Observe forwards a snapshot to the session's live cache, if any.
func (r *Registry) Observe(sess *model.ExamSession) bool {
	if c := r.Lookup(sess.ID); c != nil {
		return c.Observe(sess)
	}
	return false
}

// Len returns the number of live caches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
