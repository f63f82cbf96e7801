package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/jackc/pgx/v5"
)

type employeeRepository struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepository{db: db}
}

const employeeColumns = `id, tenant_id, external_id, first_name, last_name, email, tin, sss_no, phic_no, hdmf_no,
	daily_rate, monthly_rate, created_at, updated_at`

func scanEmployee(row pgx.Row) (employee.Employee, error) {
	var e employee.Employee
	err := row.Scan(
		&e.ID, &e.TenantID, &e.ExternalID, &e.FirstName, &e.LastName, &e.Email, &e.TIN, &e.SSSNo, &e.PhilHealthNo, &e.PagIBIGNo,
		&e.DailyRate, &e.MonthlyRate, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// Upsert inserts or updates by (tenant_id, external_id). The internal id and
// created_at of an existing record are kept.
func (r *employeeRepository) Upsert(ctx context.Context, e employee.Employee) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	if e.ID == "" {
		e.ID = newID()
	}

	query := `
		INSERT INTO employees (
			id, tenant_id, external_id, first_name, last_name, email, tin, sss_no, phic_no, hdmf_no,
			daily_rate, monthly_rate, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (tenant_id, external_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			tin = EXCLUDED.tin,
			sss_no = EXCLUDED.sss_no,
			phic_no = EXCLUDED.phic_no,
			hdmf_no = EXCLUDED.hdmf_no,
			daily_rate = EXCLUDED.daily_rate,
			monthly_rate = EXCLUDED.monthly_rate,
			updated_at = NOW()
		RETURNING ` + employeeColumns

	saved, err := scanEmployee(q.QueryRow(ctx, query,
		e.ID, e.TenantID, e.ExternalID, e.FirstName, e.LastName, e.Email, e.TIN, e.SSSNo, e.PhilHealthNo, e.PagIBIGNo,
		e.DailyRate, e.MonthlyRate,
	))
	if err != nil {
		return employee.Employee{}, fmt.Errorf("failed to upsert employee: %w", err)
	}
	return saved, nil
}

func (r *employeeRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (employee.Employee, error) {
	if !validID(id) {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1 AND tenant_id = $2`

	e, err := scanEmployee(q.QueryRow(ctx, query, id, scope.TenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

func (r *employeeRepository) List(ctx context.Context, scope tenant.Scope, filter employee.EmployeeFilter) ([]employee.Employee, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE tenant_id = $1`, scope.TenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count employees: %w", err)
	}

	query := `SELECT ` + employeeColumns + ` FROM employees
		WHERE tenant_id = $1
		ORDER BY external_id
		LIMIT $2 OFFSET $3`

	rows, err := q.Query(ctx, query, scope.TenantID, filter.Limit, (filter.Page-1)*filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []employee.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, total, rows.Err()
}

func (r *employeeRepository) ResolveExternalIDs(ctx context.Context, scope tenant.Scope, externalIDs []string) (map[string]string, error) {
	resolved := make(map[string]string, len(externalIDs))
	if len(externalIDs) == 0 {
		return resolved, nil
	}
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx,
		`SELECT external_id, id FROM employees WHERE tenant_id = $1 AND external_id = ANY($2)`,
		scope.TenantID, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve employee ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var externalID, id string
		if err := rows.Scan(&externalID, &id); err != nil {
			return nil, fmt.Errorf("failed to scan employee id: %w", err)
		}
		resolved[externalID] = id
	}
	return resolved, rows.Err()
}
