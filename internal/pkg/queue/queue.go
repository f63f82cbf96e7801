package queue

import (
	"context"
	"errors"
)

// Job asks for one computation pass over a run.
type Job struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
}

func (j Job) Valid() bool {
	return j.TenantID != "" && j.RunID != ""
}

var ErrInvalidJob = errors.New("queue: job requires tenant_id and run_id")

// Handler processes a job. A nil return acknowledges it; any error asks for
// redelivery, so handlers swallow terminal failures themselves.
type Handler func(ctx context.Context, job Job) error

// Dispatcher delivers jobs at least once.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}
