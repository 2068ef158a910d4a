// Package scheduler provides the cooperative task queue the reconciler uses
// to defer work to its designated thread and to observe long-running host
// operations. Work may be enqueued from any goroutine; one owner drains the
// queue, executing due tasks and retrying polling conditions once per drain.
//
// Two backends share the same queue semantics: a real-time mode where the
// owner drains on a periodic tick, and an immediate mode for batch and test
// runs where every enqueue drains synchronously. The reconciliation
// algorithms run identically under both.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/plugrec/plugrec/internal/output"
)

// Mode selects the drain behavior.
type Mode int

const (
	// Ticking defers execution to periodic Drain calls (or Run's tick loop).
	Ticking Mode = iota

	// Immediate drains synchronously on every enqueue.
	Immediate
)

// Handle identifies a scheduled job for cancellation. Canceling a pending
// job removes it; an already-executing job cannot be interrupted.
type Handle int

type job struct {
	fn  func()
	due time.Time
}

// Scheduler is the shared task queue plus polling-condition list.
type Scheduler struct {
	mu       sync.Mutex
	mode     Mode
	jobs     map[Handle]*job
	polls    []func() bool
	next     Handle
	draining bool
	now      func() time.Time
}

// New creates a scheduler in the given mode.
func New(mode Mode) *Scheduler {
	return &Scheduler{
		mode: mode,
		jobs: make(map[Handle]*job),
		now:  time.Now,
	}
}

// Schedule enqueues fn to run after delay, returning a cancellation handle.
// In immediate mode the queue is drained synchronously before returning and
// the delay is ignored.
func (s *Scheduler) Schedule(fn func(), delay time.Duration) Handle {
	s.mu.Lock()
	s.next++
	handle := s.next
	due := s.now().Add(delay)
	if s.mode == Immediate {
		due = s.now()
	}
	s.jobs[handle] = &job{fn: fn, due: due}
	mode := s.mode
	s.mu.Unlock()

	if mode == Immediate {
		s.Drain(false)
	}
	return handle
}

// Cancel removes a pending job. Canceling an unknown or already-executed
// handle is a no-op.
func (s *Scheduler) Cancel(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, handle)
}

// PollUntil registers a predicate retried on every drain until it reports
// true. In immediate mode the predicate is evaluated synchronously until it
// holds.
func (s *Scheduler) PollUntil(pred func() bool) {
	s.mu.Lock()
	mode := s.mode
	if mode == Ticking {
		s.polls = append(s.polls, pred)
	}
	s.mu.Unlock()

	if mode == Immediate {
		for !runPoll(pred) {
		}
	}
}

// Pending reports the number of jobs waiting to execute.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Drain executes every due job and retries every polling condition once.
// A drain requested while another drain is in progress is suppressed unless
// forced; a task that enqueues more tasks must not recurse into a nested
// drain.
func (s *Scheduler) Drain(force bool) {
	s.mu.Lock()
	if s.draining && !force {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}()

	for {
		now := s.now()
		s.mu.Lock()
		var due []func()
		for handle, j := range s.jobs {
			if !j.due.After(now) {
				due = append(due, j.fn)
				delete(s.jobs, handle)
			}
		}
		s.mu.Unlock()
		if len(due) == 0 {
			break
		}
		for _, fn := range due {
			runTask(fn)
		}
	}

	s.mu.Lock()
	polls := s.polls
	s.polls = nil
	s.mu.Unlock()
	var remaining []func() bool
	for _, pred := range polls {
		if !runPoll(pred) {
			remaining = append(remaining, pred)
		}
	}
	s.mu.Lock()
	s.polls = append(remaining, s.polls...)
	s.mu.Unlock()
}

// Run drains on every tick until ctx is canceled. Only meaningful in ticking
// mode.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Drain(false)
		}
	}
}

// runTask executes one task; a panic is logged and the task is treated as
// complete so the scheduler never wedges.
func runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			output.Error("scheduled task panicked", "panic", r)
		}
	}()
	fn()
}

// runPoll evaluates one polling condition; a panic is logged and the
// condition is treated as satisfied so it cannot wedge the drain loop.
func runPoll(pred func() bool) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			output.Error("polling condition panicked", "panic", r)
			done = true
		}
	}()
	return pred()
}
