package employee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

type EmployeeServiceImpl struct {
	employeeRepo employee.EmployeeRepository
	now          func() time.Time
}

func NewEmployeeService(employeeRepo employee.EmployeeRepository) employee.EmployeeService {
	return &EmployeeServiceImpl{
		employeeRepo: employeeRepo,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SyncEmployee implements employee.EmployeeService.
func (s *EmployeeServiceImpl) SyncEmployee(ctx context.Context, scope tenant.Scope, req employee.SyncEmployeeRequest) (employee.EmployeeResponse, error) {
	if !scope.Valid() {
		return employee.EmployeeResponse{}, tenant.ErrMissingScope
	}
	if err := req.Validate(); err != nil {
		return employee.EmployeeResponse{}, err
	}

	now := s.now()
	emp, err := s.employeeRepo.Upsert(ctx, employee.Employee{
		TenantID:     scope.TenantID,
		ExternalID:   req.ExternalID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		TIN:          req.TIN,
		SSSNo:        req.SSSNo,
		PhilHealthNo: req.PhilHealthNo,
		PagIBIGNo:    req.PagIBIGNo,
		DailyRate:    req.DailyRate,
		MonthlyRate:  req.MonthlyRate,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return employee.EmployeeResponse{}, fmt.Errorf("failed to sync employee: %w", err)
	}

	slog.Info("Employee synced", "tenant_id", scope.TenantID, "employee_id", emp.ID, "external_id", emp.ExternalID)
	return employee.NewEmployeeResponse(emp), nil
}

// GetEmployee implements employee.EmployeeService.
func (s *EmployeeServiceImpl) GetEmployee(ctx context.Context, scope tenant.Scope, id string) (employee.EmployeeResponse, error) {
	if !scope.Valid() {
		return employee.EmployeeResponse{}, tenant.ErrMissingScope
	}

	emp, err := s.employeeRepo.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.EmployeeResponse{}, err
		}
		return employee.EmployeeResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}
	return employee.NewEmployeeResponse(emp), nil
}

// ListEmployees implements employee.EmployeeService.
func (s *EmployeeServiceImpl) ListEmployees(ctx context.Context, scope tenant.Scope, filter employee.EmployeeFilter) (employee.ListEmployeeResponse, error) {
	if !scope.Valid() {
		return employee.ListEmployeeResponse{}, tenant.ErrMissingScope
	}
	filter.Normalize()

	employees, total, err := s.employeeRepo.List(ctx, scope, filter)
	if err != nil {
		return employee.ListEmployeeResponse{}, fmt.Errorf("failed to list employees: %w", err)
	}
	return employee.NewListEmployeeResponse(employees, total, filter), nil
}
