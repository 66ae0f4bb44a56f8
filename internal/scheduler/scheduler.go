// Package scheduler runs named jobs at fixed intervals. Each job is keyed by
// id: adding a job under an existing id replaces it, and a job never overlaps
// itself because each id is driven by a single goroutine.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// JobFunc is one execution of a scheduled job.
type JobFunc func(ctx context.Context)

// JobInfo is a read-only snapshot of a scheduled job.
type JobInfo struct {
	ID       string        `json:"id"`
	Interval time.Duration `json:"interval"`
	Paused   bool          `json:"paused"`
	NextRun  time.Time     `json:"next_run"`
}

type jobState struct {
	id       string
	interval time.Duration
	run      JobFunc
	paused   bool
	nextRun  time.Time
	cancel   context.CancelFunc
}

// Scheduler owns the job table and the goroutines driving it. Safe for
// concurrent use. Shutdown cancels all jobs and waits for in-flight
// executions to return.
type Scheduler struct {
	mu   sync.Mutex
	jobs map[string]*jobState

	logger *logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

func NewScheduler(l *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		jobs:   make(map[string]*jobState),
		logger: l,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob schedules fn every interval under the given id. An existing job
// with the same id is cancelled and replaced. The first run happens one
// interval from now.
func (s *Scheduler) AddJob(id string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "job interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeSchedulerStopped, "scheduler is shut down")
	}

	if existing, ok := s.jobs[id]; ok {
		existing.cancel()
		s.logger.Info("replacing scheduled job", zap.String("job_id", id))
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	js := &jobState{
		id:       id,
		interval: interval,
		run:      fn,
		nextRun:  time.Now().Add(interval),
		cancel:   jobCancel,
	}
	s.jobs[id] = js

	s.wg.Add(1)
	go s.runLoop(jobCtx, js)

	s.logger.Info("scheduled job",
		zap.String("job_id", id),
		zap.Duration("interval", interval))

	return nil
}

// RemoveJob stops future fires of the job with the given id; an execution
// already in flight runs to completion. Removing an unknown id is a no-op
// and returns false.
func (s *Scheduler) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.jobs[id]
	if !ok {
		return false
	}

	js.cancel()
	delete(s.jobs, id)
	s.logger.Info("removed scheduled job", zap.String("job_id", id))

	return true
}

// Pause keeps the job scheduled but skips its executions until Resume.
// Returns false for an unknown id.
func (s *Scheduler) Pause(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.jobs[id]
	if !ok {
		return false
	}

	js.paused = true

	return true
}

// Resume re-enables a paused job. Returns false for an unknown id.
func (s *Scheduler) Resume(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.jobs[id]
	if !ok {
		return false
	}

	js.paused = false

	return true
}

// NextRun returns the next scheduled fire time of the job.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	js, ok := s.jobs[id]
	if !ok {
		return time.Time{}, false
	}

	return js.nextRun, true
}

// Jobs returns a snapshot of all scheduled jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, js := range s.jobs {
		infos = append(infos, JobInfo{
			ID:       js.id,
			Interval: js.interval,
			Paused:   js.paused,
			NextRun:  js.nextRun,
		})
	}

	return infos
}

// Shutdown cancels every job and blocks until all executions have returned.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, js *jobState) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		next := js.nextRun
		s.mu.Unlock()

		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}

		now := time.Now()

		s.mu.Lock()
		paused := js.paused
		// A fire time missed by more than one interval is a misfire: skip
		// it rather than running a stale check.
		misfired := now.After(js.nextRun.Add(js.interval))
		for !js.nextRun.After(now) {
			js.nextRun = js.nextRun.Add(js.interval)
		}
		s.mu.Unlock()

		if paused {
			continue
		}

		if misfired {
			s.logger.Warn("skipping misfired job run",
				zap.String("job_id", js.id),
				zap.Time("scheduled_for", next))

			continue
		}

		// Runs execute under the scheduler's root context: removing the job
		// stops future fires but must not abort an execution already in
		// flight. Only Shutdown cancels running jobs.
		js.run(s.ctx)
	}
}
