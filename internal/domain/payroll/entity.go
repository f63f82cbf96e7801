package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// Status enum
type Status string

const (
	StatusDraft     Status = "draft"
	StatusComputing Status = "computing"
	StatusComputed  Status = "computed"
	StatusFinalized Status = "finalized"
)

// transitions lists the allowed next states. computing -> computing is a
// resumed pass and is only taken while holding the run lock.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusComputing},
	StatusComputing: {StatusComputing, StatusComputed},
	StatusComputed:  {StatusFinalized},
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusComputing, StatusComputed, StatusFinalized:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResultsVisible reports whether a run's results may be read.
func (s Status) ResultsVisible() bool {
	return s == StatusComputed || s == StatusFinalized
}

// Category enum. Values are the wire names used at ingestion.
type Category string

const (
	CategoryBasic               Category = "basic"
	CategoryOvertime            Category = "overtime"
	CategoryTaxableAllowance    Category = "allowance_taxable"
	CategoryNonTaxableAllowance Category = "allowance_non_taxable"
	CategoryDeduction           Category = "deduction"
	CategoryAbsence             Category = "absence"
)

var Categories = []Category{
	CategoryBasic,
	CategoryOvertime,
	CategoryTaxableAllowance,
	CategoryNonTaxableAllowance,
	CategoryDeduction,
	CategoryAbsence,
}

// Run - one payroll-period batch for a tenant
type Run struct {
	ID              string
	TenantID        string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	PayoutDate      time.Time
	Status          Status
	FailedEmployees []EmployeeFailure
	ComputedAt      *time.Time
	FinalizedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LineItem - raw earning or deduction for one employee. Amount is never
// negative; the category decides its sign.
type LineItem struct {
	ID          string
	RunID       string
	TenantID    string
	EmployeeID  string
	Description string
	Amount      decimal.Decimal
	Category    Category
	CreatedAt   time.Time
}

// Result - computed outcome for one employee within one run
type Result struct {
	ID                   string
	RunID                string
	TenantID             string
	EmployeeID           string
	GrossIncome          money.Amount
	SSS                  money.Amount
	PhilHealth           money.Amount
	PagIBIG              money.Amount
	TotalStatutory       money.Amount
	TaxableIncome        money.Amount
	WithholdingTax       money.Amount
	OtherDeductions      money.Amount
	NonTaxableAllowances money.Amount
	TotalDeductions      money.Amount
	NetPay               money.Amount
	ComputedAt           time.Time

	// Joined fields
	EmployeeExternalID *string
	EmployeeName       *string
}

// EmployeeFailure records an employee whose result could not be computed.
type EmployeeFailure struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}
