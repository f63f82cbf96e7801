package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is a task run on a fixed interval. Timeout bounds a single execution;
// zero means the interval.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Fn       func(ctx context.Context) error
}

func (j Job) timeout() time.Duration {
	if j.Timeout > 0 {
		return j.Timeout
	}
	return j.Interval
}

// RunObserver is told the outcome of every execution; *metrics.Payroll
// implements it.
type RunObserver interface {
	CronRun(job string, err error, d time.Duration)
}

type Option func(*Scheduler)

func WithObserver(o RunObserver) Option {
	return func(s *Scheduler) { s.observer = o }
}

// Scheduler runs each job in its own goroutine. Executions of one job never
// overlap; a slow execution delays the next tick.
type Scheduler struct {
	jobs     []Job
	observer RunObserver

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewScheduler(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{ctx: ctx, cancel: cancel}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers a job. Jobs added after Start are not run until the next Start.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = append(s.jobs, job)
	slog.Info("Cron job registered", "name", job.Name, "interval", job.Interval, "timeout", job.timeout())
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(job)
	}
	slog.Info("Cron scheduler started", "job_count", len(s.jobs))
}

// Stop cancels running executions and waits for every job goroutine to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}

	slog.Info("Stopping cron scheduler...")
	s.cancel()
	s.wg.Wait()
	slog.Info("Cron scheduler stopped")
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// First execution happens at start, not one interval later.
	s.execute(s.ctx, job)

	for {
		select {
		case <-s.ctx.Done():
			slog.Info("Cron job stopping", "name", job.Name)
			return
		case <-ticker.C:
			s.execute(s.ctx, job)
		}
	}
}

func (s *Scheduler) execute(parent context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(parent, job.timeout())
	defer cancel()

	start := time.Now()
	err := job.Fn(ctx)
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer.CronRun(job.Name, err, elapsed)
	}
	if err != nil {
		slog.Error("Cron job failed", "name", job.Name, "error", err, "duration", elapsed)
		return fmt.Errorf("%s: %w", job.Name, err)
	}
	slog.Debug("Cron job completed", "name", job.Name, "duration", elapsed)
	return nil
}

// RunOnce executes every job once, in registration order, and returns the
// failures joined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		if err := s.execute(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
