package debounce

import (
	"sync"
	"time"
)

type pending struct {
	timer *time.Timer
	fn    func()
}

// Scheduler coalesces rapid repeated triggers for a key into a single deferred
// call. A trigger while a timer is armed resets the timer (last trigger wins);
// it never queues a second invocation.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*pending
	closed  bool
}

// NewScheduler constructs an empty debounce scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[string]*pending)}
}

// Trigger arms (or re-arms) the timer for key. fn runs once on its own
// goroutine after delay elapses with no further triggers for the same key.
// The most recent fn wins when triggers overlap.
func (s *Scheduler) Trigger(key string, delay time.Duration, fn func()) {
	if fn == nil {
		return
	}
	if delay <= 0 {
		fn()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if p, ok := s.pending[key]; ok {
		p.fn = fn
		p.timer.Reset(delay)
		return
	}

	p := &pending{fn: fn}
	p.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.pending[key]
		if ok {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		if ok && current.fn != nil {
			current.fn()
		}
	})
	s.pending[key] = p
}

// Cancel drops any pending invocation for key. Safe to call for unknown keys.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pending[key]; ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
}

// Flush fires the pending invocation for key immediately, if one is armed.
func (s *Scheduler) Flush(key string) {
	s.mu.Lock()
	p, ok := s.pending[key]
	if ok {
		p.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if ok && p.fn != nil {
		p.fn()
	}
}

// Close cancels every pending timer and rejects further triggers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
}

// Pending reports whether a timer is currently armed for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.pending[key]
	return ok
}
