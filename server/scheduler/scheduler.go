// Package scheduler maintains a set of uniquely identified deferred jobs
// and fires each one's callback at its fire time. Jobs are keyed by id:
// adding a job under an existing id replaces the pending one, so
// replanning the same event never duplicates work.
package scheduler

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrSchedulerNotInitialized is returned when a job is submitted before
// the scheduler has been started. Bootstrap treats it as fatal.
var ErrSchedulerNotInitialized = errors.New("scheduler not initialized")

// Job is a pending unit of deferred work.
type Job struct {
	ID          string
	FireAt      time.Time
	Description string

	callback func()
	seq      uint64
}

// PendingJob is the observable snapshot of one pending job.
type PendingJob struct {
	ID          string    `json:"id"`
	FireAt      time.Time `json:"fire_at"`
	Description string    `json:"description"`
}

// Scheduler owns the pending-job set and the dispatch loop. The loop
// wakes at the next fire time, claims due jobs under the lock, and hands
// them to a worker goroutine over a channel so delivery I/O never blocks
// the timing loop.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*Job
	nextSeq uint64
	running bool

	wakeCh chan struct{}
	fireCh chan *Job
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a stopped scheduler. A nil clock falls back to the system
// clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		clock:  clock,
		logger: slog.Default(),
		jobs:   make(map[string]*Job),
		wakeCh: make(chan struct{}, 1),
		fireCh: make(chan *Job, 16),
	}
}

// Start launches the dispatch loop and the firing worker.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.fireCh = make(chan *Job, 16)

	s.wg.Add(2)
	go s.dispatchLoop()
	go s.fireWorker()

	s.logger.Info("job scheduler started")
	return nil
}

// Stop halts the dispatch loop and waits for in-flight callbacks to
// drain. Pending jobs that have not fired are kept in the set.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("job scheduler stopped")
}

// Add inserts or replaces the job with the given id. A pending job under
// the same id is removed first, so there is at most one pending job per
// id at any time.
func (s *Scheduler) Add(id string, fireAt time.Time, description string, callback func()) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotInitialized
	}
	s.nextSeq++
	replaced := s.jobs[id] != nil
	s.jobs[id] = &Job{
		ID:          id,
		FireAt:      fireAt,
		Description: description,
		callback:    callback,
		seq:         s.nextSeq,
	}
	s.mu.Unlock()

	if replaced {
		s.logger.Debug("replaced pending job", "job_id", id, "fire_at", fireAt)
	} else {
		s.logger.Debug("added job", "job_id", id, "fire_at", fireAt)
	}
	s.wake()
	return nil
}

// Cancel removes a pending job. Cancelling an absent or already fired id
// is a no-op.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("cancelled job", "job_id", id)
		s.wake()
	}
}

// ListPending returns a point-in-time snapshot of pending jobs ordered
// by fire time.
func (s *Scheduler) ListPending() []PendingJob {
	s.mu.Lock()
	pending := make([]PendingJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		pending = append(pending, PendingJob{ID: j.ID, FireAt: j.FireAt, Description: j.Description})
	}
	s.mu.Unlock()

	sort.Slice(pending, func(i, k int) bool {
		if pending[i].FireAt.Equal(pending[k].FireAt) {
			return pending[i].ID < pending[k].ID
		}
		return pending[i].FireAt.Before(pending[k].FireAt)
	})
	return pending
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// dispatchLoop wakes at the earliest pending fire time, claims every due
// job atomically with respect to Add/Cancel, and forwards them to the
// fire worker. Claiming deletes the job from the set first, so a
// replacement racing with dispatch can never double-fire the same id.
func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()
	defer close(s.fireCh)

	for {
		// A wake received before this point is subsumed by the map read
		// below; drain it so a stale signal cannot trigger a spurious
		// extra iteration later.
		select {
		case <-s.wakeCh:
		default:
		}

		now := s.clock.Now()

		s.mu.Lock()
		var due []*Job
		var next time.Time
		for id, j := range s.jobs {
			if !j.FireAt.After(now) {
				delete(s.jobs, id)
				due = append(due, j)
			} else if next.IsZero() || j.FireAt.Before(next) {
				next = j.FireAt
			}
		}
		s.mu.Unlock()

		sort.Slice(due, func(i, k int) bool { return due[i].seq < due[k].seq })
		for _, j := range due {
			select {
			case s.fireCh <- j:
			case <-s.stopCh:
				return
			}
		}

		var timer Timer
		var timerC <-chan time.Time
		if !next.IsZero() {
			// Re-read the clock at arm time: the deadline computation
			// must not use a now that predates a concurrent clock step.
			timer = s.clock.NewTimer(next.Sub(s.clock.Now()))
			timerC = timer.C()
		}

		select {
		case <-s.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wakeCh:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
		}
	}
}

// fireWorker consumes claimed jobs and runs their callbacks. A callback
// failure is logged and the job still counts as fired.
func (s *Scheduler) fireWorker() {
	defer s.wg.Done()

	for j := range s.fireCh {
		s.runCallback(j)
	}
}

func (s *Scheduler) runCallback(j *Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job callback panicked", "job_id", j.ID, "panic", r)
		}
	}()

	s.logger.Info("firing job", "job_id", j.ID, "description", j.Description)
	j.callback()
}
