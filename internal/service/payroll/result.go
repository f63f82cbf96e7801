package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/money"
	statutorySvc "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
)

// BuildResult derives one employee's result. Every component is quantized
// once by the calculator; the totals below are exact sums of those parts, so
// net = gross - total deductions holds to the cent.
func BuildResult(calc statutorySvc.Calculator, run payroll.Run, employeeID string, totals EmployeeTotals, now time.Time) (payroll.Result, error) {
	b, err := calc.Compute(totals.Gross)
	if err != nil {
		return payroll.Result{}, err
	}

	other := money.Quantize(totals.OtherDeductions)
	totalDeductions := money.Sum(b.TotalStatutory, b.WithholdingTax, other)

	return payroll.Result{
		RunID:                run.ID,
		TenantID:             run.TenantID,
		EmployeeID:           employeeID,
		GrossIncome:          b.Gross,
		SSS:                  b.SSS,
		PhilHealth:           b.PhilHealth,
		PagIBIG:              b.PagIBIG,
		TotalStatutory:       b.TotalStatutory,
		TaxableIncome:        b.TaxableIncome,
		WithholdingTax:       b.WithholdingTax,
		OtherDeductions:      other,
		NonTaxableAllowances: money.Quantize(totals.NonTaxableAllowances),
		TotalDeductions:      totalDeductions,
		NetPay:               b.Gross.Sub(totalDeductions),
		ComputedAt:           now,
	}, nil
}
