package authsdk

import (
	"sync"
	"time"
)

// renewScheduler arms a single timer that fires shortly before the access
// token expires. It owns no retry or refresh logic; firing simply invokes
// the callback the session manager registered.
type renewScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// Arm schedules fire to run after d, cancelling any previously armed timer.
// The generation counter makes re-arming atomic: a timer that already fired
// but has not run yet becomes a no-op once a newer timer exists.
func (s *renewScheduler) Arm(d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}

	s.gen++
	gen := s.gen

	if d < 0 {
		d = 0
	}

	s.timer = time.AfterFunc(d, func() {
		if !s.current(gen) {
			return
		}
		fire()
	})
}

// Disarm cancels the pending timer, if any. Safe to call repeatedly.
func (s *renewScheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *renewScheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}
