package payroll

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

// IsTerminal reports whether redelivering a compute job can change its
// outcome. Terminal failures are acknowledged; everything else is retried.
func IsTerminal(err error) bool {
	return errors.Is(err, payroll.ErrDuplicateComputation) ||
		errors.Is(err, payroll.ErrRunNotFound) ||
		errors.Is(err, payroll.ErrConfiguration) ||
		errors.Is(err, payroll.ErrInvalidInput) ||
		errors.Is(err, tenant.ErrMissingScope)
}

// HandleJob adapts Compute to a queue handler. It returns nil for jobs that
// must not be redelivered.
func HandleJob(ctx context.Context, svc payroll.Service, job queue.Job) error {
	err := svc.Compute(ctx, tenant.Scope{TenantID: job.TenantID}, job.RunID)
	if err == nil {
		return nil
	}
	if IsTerminal(err) {
		slog.Info("Compute job acknowledged without retry", "job_id", job.ID, "tenant_id", job.TenantID, "run_id", job.RunID, "reason", err)
		return nil
	}
	return err
}
