package session

// Coordinator submits the session automatically once its time runs out.
// It fires at most once per session cache, no matter how many views observe
// the countdown.
type Coordinator struct {
	cache     *Cache
	completer *Completer
	notify    Notifier
}

// NewCoordinator creates a Coordinator that completes through completer.
func NewCoordinator(cache *Cache, completer *Completer, notify Notifier) *Coordinator {
	return &Coordinator{cache: cache, completer: completer, notify: notify}
}

// Observe evaluates one tick and reports whether it triggered the automatic
// submission. The completion runs asynchronously in the cache's scope.
func (c *Coordinator) Observe(t Tick) bool {
	if !t.Active || t.Remaining > 0 {
		return false
	}
	if !c.cache.TryAutoSubmit() {
		return false
	}

	c.notify.Notify(NoticeAutoSubmit)
	go func() {
		_, _ = c.completer.finish(c.cache.Context())
	}()
	return true
}
