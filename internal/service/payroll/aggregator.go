package payroll

import (
	"fmt"
	"sort"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// EmployeeTotals are exact sums; nothing here is rounded.
type EmployeeTotals struct {
	Gross                decimal.Decimal
	OtherDeductions      decimal.Decimal
	NonTaxableAllowances decimal.Decimal
}

// Aggregation is the per-employee fold of one run's line items. An employee
// with a bad item appears in Failures and not in Totals.
type Aggregation struct {
	Totals   map[string]EmployeeTotals
	Failures map[string]error
}

// Aggregate groups items by employee and sums each into its bucket. The
// result does not depend on item order.
func Aggregate(items []payroll.LineItem) Aggregation {
	agg := Aggregation{
		Totals:   make(map[string]EmployeeTotals),
		Failures: make(map[string]error),
	}

	for _, item := range items {
		if _, failed := agg.Failures[item.EmployeeID]; failed {
			continue
		}

		bucket, err := Classify(item.Category)
		if err == nil && item.Amount.IsNegative() {
			err = fmt.Errorf("%w: line item %s has negative amount %s", payroll.ErrInvalidInput, item.ID, item.Amount)
		}
		if err != nil {
			agg.Failures[item.EmployeeID] = err
			delete(agg.Totals, item.EmployeeID)
			continue
		}

		totals := agg.Totals[item.EmployeeID]
		switch bucket {
		case BucketEarning:
			totals.Gross = totals.Gross.Add(item.Amount)
		case BucketOtherDeduction:
			totals.OtherDeductions = totals.OtherDeductions.Add(item.Amount)
		case BucketNonTaxable:
			totals.NonTaxableAllowances = totals.NonTaxableAllowances.Add(item.Amount)
		}
		agg.Totals[item.EmployeeID] = totals
	}

	return agg
}

// Employees returns the employees with totals, sorted.
func (a Aggregation) Employees() []string {
	ids := make([]string, 0, len(a.Totals))
	for id := range a.Totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FailureRecords returns the failures sorted by employee.
func (a Aggregation) FailureRecords() []payroll.EmployeeFailure {
	records := make([]payroll.EmployeeFailure, 0, len(a.Failures))
	for id, err := range a.Failures {
		records = append(records, (&payroll.EmployeeError{EmployeeID: id, Err: err}).Failure())
	}
	sortFailures(records)
	return records
}

func sortFailures(records []payroll.EmployeeFailure) {
	sort.Slice(records, func(i, j int) bool { return records[i].EmployeeID < records[j].EmployeeID })
}
