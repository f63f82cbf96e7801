package employee

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

// EmployeeService maintains the tenant's employee directory.
type EmployeeService interface {
	// SyncEmployee creates the employee or updates the one with the same external id.
	SyncEmployee(ctx context.Context, scope tenant.Scope, req SyncEmployeeRequest) (EmployeeResponse, error)

	GetEmployee(ctx context.Context, scope tenant.Scope, id string) (EmployeeResponse, error)
	ListEmployees(ctx context.Context, scope tenant.Scope, filter EmployeeFilter) (ListEmployeeResponse, error)
}
