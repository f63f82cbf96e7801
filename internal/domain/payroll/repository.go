package payroll

import (
	"context"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

// RunRepository defines data access methods for payroll runs.
// Every read and write takes the tenant scope; a run outside the scope is
// reported as ErrRunNotFound.
type RunRepository interface {
	Create(ctx context.Context, run Run) (Run, error)
	GetByID(ctx context.Context, scope tenant.Scope, id string) (Run, error)
	List(ctx context.Context, scope tenant.Scope, filter RunFilter) ([]Run, int64, error)

	// UpdateStatus moves the run from one status to another only if it is
	// still in from. A mismatch returns ErrInvalidTransition.
	UpdateStatus(ctx context.Context, scope tenant.Scope, id string, from, to Status) (Run, error)
	SetFailures(ctx context.Context, scope tenant.Scope, id string, failures []EmployeeFailure) error

	// ListStale crosses tenants; it backs the sweeper only.
	ListStale(ctx context.Context, statuses []Status, updatedBefore time.Time, limit int) ([]Run, error)
}

type LineItemRepository interface {
	CreateBatch(ctx context.Context, items []LineItem) error
	ListByRun(ctx context.Context, scope tenant.Scope, runID string) ([]LineItem, error)
}

// ResultRepository keeps at most one result per (run, employee).
type ResultRepository interface {
	Upsert(ctx context.Context, result Result) (Result, error)
	ListByRun(ctx context.Context, scope tenant.Scope, runID string) ([]Result, error)
}
