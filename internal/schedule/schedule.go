// Package schedule runs keyed, cancellable delayed tasks on a clock that
// tests can replace with a mock.
package schedule

import (
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs at most one pending task per key. Rescheduling a key stops
// the previous timer first, so a key never fires twice for one arming.
//
// Tasks run while holding the locker given to New. Callers that share that
// locker with the rest of their state can call Schedule and Cancel from
// inside a task without extra synchronization.
type Scheduler struct {
	clock clock.Clock
	run   sync.Locker

	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
}

type task struct {
	timer *clock.Timer
	due   time.Time
	fired bool
}

// New creates a scheduler on clk. Tasks execute while holding run; a nil run
// gets a private mutex.
func New(clk clock.Clock, run sync.Locker) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if run == nil {
		run = &sync.Mutex{}
	}
	return &Scheduler{
		clock: clk,
		run:   run,
		tasks: make(map[string]*task),
	}
}

// Clock returns the clock the scheduler runs on.
func (s *Scheduler) Clock() clock.Clock { return s.clock }

// Schedule arms fn to run after d under key, replacing any pending task with
// the same key.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}

	t := &task{due: s.clock.Now().Add(d)}
	s.tasks[key] = t
	t.timer = s.clock.AfterFunc(d, func() { s.fire(key, t, fn) })
}

func (s *Scheduler) fire(key string, t *task, fn func()) {
	s.run.Lock()
	defer s.run.Unlock()

	s.mu.Lock()
	if s.tasks[key] != t || t.fired {
		s.mu.Unlock()
		return
	}
	t.fired = true
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	if s.tasks[key] == t {
		delete(s.tasks, key)
	}
	s.mu.Unlock()
}

// Cancel stops the task under key. It reports whether a pending task existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return !t.fired
}

// CancelPrefix stops every task whose key starts with prefix.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, t := range s.tasks {
		if strings.HasPrefix(key, prefix) {
			t.timer.Stop()
			delete(s.tasks, key)
			n++
		}
	}
	return n
}

// Pending reports whether a task is armed under key and has not started.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	return ok && !t.fired
}

// Len returns the number of armed or running tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Overdue counts tasks that are due by now but have not finished running.
// With a mock clock it reaches zero once every callback released by the last
// Add has completed.
func (s *Scheduler) Overdue() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for _, t := range s.tasks {
		if t.fired || !t.due.After(now) {
			n++
		}
	}
	return n
}

// Stop cancels every task and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, key)
	}
}
