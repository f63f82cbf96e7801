package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

type resultRepository struct {
	db *database.DB
}

func NewResultRepository(db *database.DB) payroll.ResultRepository {
	return &resultRepository{db: db}
}

// Upsert keeps one row per (run, employee); a resumed pass overwrites the
// figures of an earlier, interrupted one.
func (r *resultRepository) Upsert(ctx context.Context, result payroll.Result) (payroll.Result, error) {
	q := GetQuerier(ctx, r.db)

	if result.ID == "" {
		result.ID = newID()
	}

	query := `
		INSERT INTO payroll_results (
			id, run_id, tenant_id, employee_id,
			gross_income, sss, philhealth, pagibig, total_statutory,
			taxable_income, withholding_tax, other_deductions, non_taxable_allowances,
			total_deductions, net_pay, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (run_id, employee_id) DO UPDATE SET
			gross_income = EXCLUDED.gross_income,
			sss = EXCLUDED.sss,
			philhealth = EXCLUDED.philhealth,
			pagibig = EXCLUDED.pagibig,
			total_statutory = EXCLUDED.total_statutory,
			taxable_income = EXCLUDED.taxable_income,
			withholding_tax = EXCLUDED.withholding_tax,
			other_deductions = EXCLUDED.other_deductions,
			non_taxable_allowances = EXCLUDED.non_taxable_allowances,
			total_deductions = EXCLUDED.total_deductions,
			net_pay = EXCLUDED.net_pay,
			computed_at = EXCLUDED.computed_at
		RETURNING id
	`

	err := q.QueryRow(ctx, query,
		result.ID, result.RunID, result.TenantID, result.EmployeeID,
		result.GrossIncome, result.SSS, result.PhilHealth, result.PagIBIG, result.TotalStatutory,
		result.TaxableIncome, result.WithholdingTax, result.OtherDeductions, result.NonTaxableAllowances,
		result.TotalDeductions, result.NetPay, result.ComputedAt,
	).Scan(&result.ID)
	if err != nil {
		return payroll.Result{}, fmt.Errorf("failed to upsert payroll result: %w", err)
	}
	return result, nil
}

func (r *resultRepository) ListByRun(ctx context.Context, scope tenant.Scope, runID string) ([]payroll.Result, error) {
	if !validID(runID) {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT pr.id, pr.run_id, pr.tenant_id, pr.employee_id,
			   pr.gross_income, pr.sss, pr.philhealth, pr.pagibig, pr.total_statutory,
			   pr.taxable_income, pr.withholding_tax, pr.other_deductions, pr.non_taxable_allowances,
			   pr.total_deductions, pr.net_pay, pr.computed_at,
			   e.external_id, e.first_name || ' ' || e.last_name
		FROM payroll_results pr
		LEFT JOIN employees e ON e.id = pr.employee_id
		WHERE pr.run_id = $1 AND pr.tenant_id = $2
		ORDER BY pr.employee_id
	`

	rows, err := q.Query(ctx, query, runID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll results: %w", err)
	}
	defer rows.Close()

	var results []payroll.Result
	for rows.Next() {
		var res payroll.Result
		if err := rows.Scan(
			&res.ID, &res.RunID, &res.TenantID, &res.EmployeeID,
			&res.GrossIncome, &res.SSS, &res.PhilHealth, &res.PagIBIG, &res.TotalStatutory,
			&res.TaxableIncome, &res.WithholdingTax, &res.OtherDeductions, &res.NonTaxableAllowances,
			&res.TotalDeductions, &res.NetPay, &res.ComputedAt,
			&res.EmployeeExternalID, &res.EmployeeName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
