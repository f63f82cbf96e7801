package payroll

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

// Service is the payroll batch engine. Every entry point takes the tenant
// scope explicitly.
type Service interface {
	// CreateRun ingests a batch: one draft run plus its line items, then
	// schedules computation.
	CreateRun(ctx context.Context, scope tenant.Scope, req CreateRunRequest) (CreateRunResponse, error)

	// Compute runs one computation pass. Safe under repeated or concurrent
	// invocation for the same run.
	Compute(ctx context.Context, scope tenant.Scope, runID string) error

	Finalize(ctx context.Context, scope tenant.Scope, runID string) (RunResponse, error)
	GetRun(ctx context.Context, scope tenant.Scope, runID string) (RunResponse, error)
	ListRuns(ctx context.Context, scope tenant.Scope, filter RunFilter) (ListRunResponse, error)

	// ListResults, Summary and Export only read runs that are computed or finalized.
	ListResults(ctx context.Context, scope tenant.Scope, runID string) ([]ResultResponse, error)
	Summary(ctx context.Context, scope tenant.Scope, runID string) (RunSummaryResponse, error)
	Export(ctx context.Context, scope tenant.Scope, runID string) (Export, error)
}
