package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/google/uuid"
)

// SweepRecorder counts redispatched runs; *metrics.Payroll implements it.
type SweepRecorder interface {
	RunsSwept(n int)
}

type PayrollJobsOptions struct {
	Interval time.Duration
	// StaleAfter is how long a run may sit in draft or computing before its
	// compute job is dispatched again.
	StaleAfter time.Duration
	BatchSize  int
	Metrics    SweepRecorder
}

// PayrollJobs re-dispatches compute jobs for runs whose original job was lost:
// a draft run whose dispatch failed after commit, or a computing run whose
// worker died mid-pass. Compute is idempotent, so a duplicate job is harmless.
type PayrollJobs struct {
	runRepo    payroll.RunRepository
	dispatcher queue.Dispatcher
	opts       PayrollJobsOptions
	now        func() time.Time
}

func NewPayrollJobs(runRepo payroll.RunRepository, dispatcher queue.Dispatcher, opts PayrollJobsOptions) *PayrollJobs {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &PayrollJobs{runRepo: runRepo, dispatcher: dispatcher, opts: opts, now: time.Now}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob(Job{
		Name:     "redispatch_stale_payroll_runs",
		Interval: j.opts.Interval,
		Fn:       j.RedispatchStaleRuns,
	})
}

func (j *PayrollJobs) RedispatchStaleRuns(ctx context.Context) error {
	cutoff := j.now().Add(-j.opts.StaleAfter)

	runs, err := j.runRepo.ListStale(ctx, []payroll.Status{payroll.StatusDraft, payroll.StatusComputing}, cutoff, j.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale runs: %w", err)
	}
	if len(runs) == 0 {
		return nil
	}

	dispatched := 0
	for _, run := range runs {
		job := queue.Job{ID: uuid.NewString(), TenantID: run.TenantID, RunID: run.ID}
		if err := j.dispatcher.Dispatch(ctx, job); err != nil {
			slog.Error("Cron: Failed to redispatch payroll run",
				"run_id", run.ID,
				"tenant_id", run.TenantID,
				"status", run.Status,
				"error", err)
			continue
		}
		dispatched++
	}

	if j.opts.Metrics != nil {
		j.opts.Metrics.RunsSwept(dispatched)
	}
	slog.Info("Cron: Stale payroll runs redispatched", "found", len(runs), "dispatched", dispatched)
	return nil
}
