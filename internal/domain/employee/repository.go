package employee

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

type EmployeeRepository interface {
	// Upsert inserts or updates by (tenant, external_id).
	Upsert(ctx context.Context, employee Employee) (Employee, error)
	GetByID(ctx context.Context, scope tenant.Scope, id string) (Employee, error)
	List(ctx context.Context, scope tenant.Scope, filter EmployeeFilter) ([]Employee, int64, error)

	// ResolveExternalIDs maps the known external ids to internal ids. Unknown
	// ids are absent from the result.
	ResolveExternalIDs(ctx context.Context, scope tenant.Scope, externalIDs []string) (map[string]string, error)
}
