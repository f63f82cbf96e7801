package payroll

import (
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	statutorySvc "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(employeeID string, category payroll.Category, amount string) payroll.LineItem {
	return payroll.LineItem{EmployeeID: employeeID, Category: category, Amount: decimal.RequireFromString(amount)}
}

func TestClassify(t *testing.T) {
	cases := map[payroll.Category]Bucket{
		payroll.CategoryBasic:               BucketEarning,
		payroll.CategoryOvertime:            BucketEarning,
		payroll.CategoryTaxableAllowance:    BucketEarning,
		payroll.CategoryNonTaxableAllowance: BucketNonTaxable,
		payroll.CategoryDeduction:           BucketOtherDeduction,
		payroll.CategoryAbsence:             BucketOtherDeduction,
	}
	require.Len(t, cases, len(payroll.Categories))
	for category, want := range cases {
		got, err := Classify(category)
		require.NoError(t, err, category)
		assert.Equal(t, want, got, category)
	}

	_, err := Classify("bonus")
	var catErr *payroll.CategoryError
	assert.True(t, errors.As(err, &catErr))
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
}

func TestAggregate_SumsPerBucket(t *testing.T) {
	agg := Aggregate([]payroll.LineItem{
		item("emp-1", payroll.CategoryBasic, "10000.00"),
		item("emp-1", payroll.CategoryOvertime, "1500.25"),
		item("emp-1", payroll.CategoryTaxableAllowance, "2000"),
		item("emp-1", payroll.CategoryNonTaxableAllowance, "800"),
		item("emp-1", payroll.CategoryDeduction, "300.10"),
		item("emp-1", payroll.CategoryAbsence, "199.90"),
		item("emp-2", payroll.CategoryBasic, "5000"),
	})

	require.Empty(t, agg.Failures)
	assert.Equal(t, []string{"emp-1", "emp-2"}, agg.Employees())

	totals := agg.Totals["emp-1"]
	assert.Equal(t, "13500.25", totals.Gross.StringFixed(2))
	assert.Equal(t, "500.00", totals.OtherDeductions.StringFixed(2))
	assert.Equal(t, "800.00", totals.NonTaxableAllowances.StringFixed(2))
}

func TestAggregate_OrderIndependent(t *testing.T) {
	items := []payroll.LineItem{
		item("emp-1", payroll.CategoryBasic, "0.333"),
		item("emp-2", payroll.CategoryBasic, "7"),
		item("emp-1", payroll.CategoryBasic, "0.333"),
		item("emp-1", payroll.CategoryDeduction, "0.1"),
		item("emp-1", payroll.CategoryBasic, "0.334"),
	}
	reversed := make([]payroll.LineItem, len(items))
	for i := range items {
		reversed[len(items)-1-i] = items[i]
	}

	a, b := Aggregate(items), Aggregate(reversed)
	for _, id := range a.Employees() {
		assert.True(t, a.Totals[id].Gross.Equal(b.Totals[id].Gross))
		assert.True(t, a.Totals[id].OtherDeductions.Equal(b.Totals[id].OtherDeductions))
	}
	assert.Equal(t, "1.000", a.Totals["emp-1"].Gross.StringFixed(3))
}

func TestAggregate_IsolatesBadEmployee(t *testing.T) {
	agg := Aggregate([]payroll.LineItem{
		item("emp-1", payroll.CategoryBasic, "1000"),
		item("emp-2", payroll.CategoryBasic, "1000"),
		item("emp-2", "bonus", "50"),
		item("emp-2", payroll.CategoryBasic, "1000"),
		item("emp-3", payroll.CategoryDeduction, "-5"),
	})

	assert.Equal(t, []string{"emp-1"}, agg.Employees())
	require.Len(t, agg.Failures, 2)
	assert.ErrorIs(t, agg.Failures["emp-2"], payroll.ErrInvalidInput)
	assert.ErrorIs(t, agg.Failures["emp-3"], payroll.ErrInvalidInput)

	records := agg.FailureRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "emp-2", records[0].EmployeeID)
	assert.Contains(t, records[0].Reason, "bonus")
	assert.Equal(t, "emp-3", records[1].EmployeeID)
}

func TestBuildResult_RegressionFixture(t *testing.T) {
	rules, err := mustTables(t).At(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	agg := Aggregate([]payroll.LineItem{
		item("emp-1", payroll.CategoryBasic, "13500.00"),
		item("emp-1", payroll.CategoryDeduction, "500.00"),
		item("emp-1", payroll.CategoryNonTaxableAllowance, "1000.00"),
	})
	run := payroll.Run{ID: "run-1", TenantID: "tenant-a"}

	r, err := BuildResult(statutorySvc.NewCalculator(rules), run, "emp-1", agg.Totals["emp-1"], time.Now())
	require.NoError(t, err)

	assert.Equal(t, "13500.00", r.GrossIncome.String())
	assert.Equal(t, "607.50", r.SSS.String())
	assert.Equal(t, "270.00", r.PhilHealth.String())
	assert.Equal(t, "100.00", r.PagIBIG.String())
	assert.Equal(t, "977.50", r.TotalStatutory.String())
	assert.Equal(t, "12522.50", r.TaxableIncome.String())
	assert.Equal(t, "0.00", r.WithholdingTax.String())
	assert.Equal(t, "500.00", r.OtherDeductions.String())
	assert.Equal(t, "1000.00", r.NonTaxableAllowances.String())
	assert.Equal(t, "1477.50", r.TotalDeductions.String())
	assert.Equal(t, "12022.50", r.NetPay.String())
}

func TestBuildResult_NetIsGrossMinusDeductions(t *testing.T) {
	rules, err := mustTables(t).At(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	calc := statutorySvc.NewCalculator(rules)

	for _, c := range []struct{ gross, other string }{
		{"0", "0"},
		{"0.01", "0.005"},
		{"20833.333", "12.345"},
		{"45678.91", "10000"},
		{"1000", "5000"},
	} {
		totals := EmployeeTotals{Gross: decimal.RequireFromString(c.gross), OtherDeductions: decimal.RequireFromString(c.other)}
		r, err := BuildResult(calc, payroll.Run{}, "emp", totals, time.Now())
		require.NoError(t, err)
		assert.True(t, r.NetPay.Equal(r.GrossIncome.Sub(r.TotalDeductions)), "gross %s other %s", c.gross, c.other)
		assert.True(t, r.TotalDeductions.Equal(r.TotalStatutory.Add(r.WithholdingTax).Add(r.OtherDeductions)))
	}
}

func TestBuildResult_MissingRuleIsConfigurationError(t *testing.T) {
	rules, err := mustTables(t).At(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	delete(rules.Contributions, statutory.SchemeSSS)

	_, err = BuildResult(statutorySvc.NewCalculator(rules), payroll.Run{}, "emp", EmployeeTotals{Gross: decimal.NewFromInt(100)}, time.Now())
	assert.ErrorIs(t, err, payroll.ErrConfiguration)
}

func mustTables(t *testing.T) statutory.Versions {
	t.Helper()
	v, err := statutorySvc.LoadDir("../../../configs/statutory")
	require.NoError(t, err)
	return v
}
