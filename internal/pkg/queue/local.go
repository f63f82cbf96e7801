package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrStopped = errors.New("queue: dispatcher stopped")

type LocalOptions struct {
	Workers     int
	Buffer      int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// LocalDispatcher runs jobs on in-process workers and retries failures with
// exponential backoff. Jobs still queued at shutdown are dropped; the stale
// run sweeper picks their runs up again.
type LocalDispatcher struct {
	handler Handler
	opts    LocalOptions
	jobs    chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewLocalDispatcher(handler Handler, opts LocalOptions) *LocalDispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Buffer < 1 {
		opts.Buffer = 64
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		handler: handler,
		opts:    opts,
		jobs:    make(chan Job, opts.Buffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (d *LocalDispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	slog.Info("Local dispatcher started", "workers", d.opts.Workers)
}

func (d *LocalDispatcher) Stop() {
	d.cancel()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.wg.Wait()
	slog.Info("Local dispatcher stopped", "dropped", len(d.jobs))
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, job Job) error {
	if !job.Valid() {
		return ErrInvalidJob
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrStopped
	}
}

func (d *LocalDispatcher) worker(n int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			d.process(n, job)
		}
	}
}

func (d *LocalDispatcher) process(worker int, job Job) {
	for attempt := 1; ; attempt++ {
		err := d.handler(d.ctx, job)
		if err == nil {
			return
		}
		if attempt >= d.opts.MaxAttempts || d.ctx.Err() != nil {
			slog.Error("Job abandoned", "job_id", job.ID, "run_id", job.RunID, "attempts", attempt, "error", err)
			return
		}

		wait := Backoff(d.opts.BaseBackoff, d.opts.MaxBackoff, attempt)
		slog.Warn("Job failed, retrying",
			"worker", worker,
			"job_id", job.ID,
			"run_id", job.RunID,
			"attempt", attempt,
			"retry_in", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Backoff doubles base per attempt, capped at ceiling.
func Backoff(base, ceiling time.Duration, attempt int) time.Duration {
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= ceiling {
			return ceiling
		}
	}
	return wait
}
