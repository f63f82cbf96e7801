package payroll

import "github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"

// Bucket is where a line item's amount is accumulated.
type Bucket int

const (
	BucketEarning Bucket = iota + 1
	BucketOtherDeduction
	// Non-taxable allowances are tracked but stay out of gross, taxable
	// income and net pay.
	BucketNonTaxable
)

func (b Bucket) String() string {
	switch b {
	case BucketEarning:
		return "earning"
	case BucketOtherDeduction:
		return "other_deduction"
	case BucketNonTaxable:
		return "non_taxable"
	}
	return "unknown"
}

// Classify never drops an item: a category outside the closed set is an error.
func Classify(category payroll.Category) (Bucket, error) {
	switch category {
	case payroll.CategoryBasic, payroll.CategoryOvertime, payroll.CategoryTaxableAllowance:
		return BucketEarning, nil
	case payroll.CategoryDeduction, payroll.CategoryAbsence:
		return BucketOtherDeduction, nil
	case payroll.CategoryNonTaxableAllowance:
		return BucketNonTaxable, nil
	}
	return 0, &payroll.CategoryError{Category: string(category)}
}
