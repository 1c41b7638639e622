// Package debounce coalesces bursts of triggers into a single delayed
// execution, keyed by operation type.
package debounce

import (
	"sync"
	"time"
)

// Scheduler runs at most one pending function per key. Scheduling a key that
// already has a pending timer cancels and reschedules it, so a burst of
// triggers within the window executes once, with the last function given.
//
// Functions run on a timer goroutine; they must do their own locking and
// should re-read current state rather than capture values, so the execution
// always observes the latest state at fire time.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arranges fn to run after delay, replacing any pending run for the
// same key.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A Stop or reschedule may have raced the firing timer; only the
		// current owner of the key runs.
		if s.stopped || s.timers[key] != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = t
}

// Cancel drops any pending run for key.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether key has a scheduled run.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels all pending runs and rejects further scheduling.
// Called when the owning editor is disposed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
