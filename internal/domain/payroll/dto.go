package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/money"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// ========== INGESTION DTOs ==========

type LineItemInput struct {
	Description string           `json:"description" validate:"required,max=255"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    string           `json:"category" validate:"required,oneof=basic overtime allowance_taxable allowance_non_taxable deduction absence"`
}

type EmployeeItemsInput struct {
	ExternalEmployeeID string          `json:"external_employee_id" validate:"required,max=64"`
	Items              []LineItemInput `json:"items" validate:"dive"`
}

type CreateRunRequest struct {
	PeriodStart string               `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string               `json:"period_end" validate:"required,datetime=2006-01-02"`
	PayoutDate  string               `json:"payout_date" validate:"required,datetime=2006-01-02"`
	Employees   []EmployeeItemsInput `json:"employees" validate:"dive"`
}

// Validate rejects the whole batch on any bad item; nothing is written for a
// request that fails here.
func (r *CreateRunRequest) Validate() error {
	errs := validator.Struct(r)

	start, startOK := validator.IsValidDate(r.PeriodStart)
	end, endOK := validator.IsValidDate(r.PeriodEnd)
	payout, payoutOK := validator.IsValidDate(r.PayoutDate)
	if startOK && endOK && end.Before(start) {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must be on or after period_start"})
	}
	if startOK && payoutOK && payout.Before(start) {
		errs = append(errs, validator.ValidationError{Field: "payout_date", Message: "must be on or after period_start"})
	}

	for i, emp := range r.Employees {
		for j, item := range emp.Items {
			if msg := amountError(item.Amount); msg != "" {
				errs = append(errs, validator.ValidationError{
					Field:   fmt.Sprintf("employees[%d].items[%d].amount", i, j),
					Message: msg,
				})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// amountError reports why an ingested amount is unusable. Amounts are never
// re-rounded on the way in.
func amountError(amount *decimal.Decimal) string {
	switch {
	case amount == nil:
		return "is required"
	case amount.IsNegative():
		return "must be non-negative; the category determines the sign"
	case !amount.Equal(amount.Round(money.Scale)):
		return fmt.Sprintf("must have at most %d decimal places", money.Scale)
	}
	return ""
}

// Dates returns the parsed period and payout dates of a validated request.
func (r *CreateRunRequest) Dates() (start, end, payout time.Time, err error) {
	if start, err = time.Parse(DateLayout, r.PeriodStart); err != nil {
		return
	}
	if end, err = time.Parse(DateLayout, r.PeriodEnd); err != nil {
		return
	}
	payout, err = time.Parse(DateLayout, r.PayoutDate)
	return
}

type CreateRunResponse struct {
	Run              RunResponse `json:"run"`
	ItemCount        int         `json:"item_count"`
	SkippedEmployees []string    `json:"skipped_employees"`
}

// ========== RUN DTOs ==========

type RunResponse struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenant_id"`
	PeriodStart     string            `json:"period_start"`
	PeriodEnd       string            `json:"period_end"`
	PayoutDate      string            `json:"payout_date"`
	Status          Status            `json:"status"`
	FailedEmployees []EmployeeFailure `json:"failed_employees"`
	ComputedAt      *time.Time        `json:"computed_at,omitempty"`
	FinalizedAt     *time.Time        `json:"finalized_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func NewRunResponse(run Run) RunResponse {
	failures := run.FailedEmployees
	if failures == nil {
		failures = []EmployeeFailure{}
	}
	return RunResponse{
		ID:              run.ID,
		TenantID:        run.TenantID,
		PeriodStart:     run.PeriodStart.Format(DateLayout),
		PeriodEnd:       run.PeriodEnd.Format(DateLayout),
		PayoutDate:      run.PayoutDate.Format(DateLayout),
		Status:          run.Status,
		FailedEmployees: failures,
		ComputedAt:      run.ComputedAt,
		FinalizedAt:     run.FinalizedAt,
		CreatedAt:       run.CreatedAt,
		UpdatedAt:       run.UpdatedAt,
	}
}

type RunFilter struct {
	Status    *string `json:"status,omitempty"`
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
	SortOrder string  `json:"sort_order"`
}

func (f *RunFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Status != nil && !Status(*f.Status).Valid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be one of: draft, computing, computed, finalized"})
	}
	if f.SortOrder != "" && f.SortOrder != "asc" && f.SortOrder != "desc" {
		errs = append(errs, validator.ValidationError{Field: "sort_order", Message: "must be asc or desc"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Normalize applies paging defaults.
func (f *RunFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
}

type ListRunResponse struct {
	Data       []RunResponse `json:"data"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}

// ========== RESULT DTOs ==========

type ResultResponse struct {
	EmployeeID           string       `json:"employee_id"`
	EmployeeExternalID   *string      `json:"employee_external_id,omitempty"`
	EmployeeName         *string      `json:"employee_name,omitempty"`
	GrossIncome          money.Amount `json:"gross_income"`
	SSS                  money.Amount `json:"sss"`
	PhilHealth           money.Amount `json:"philhealth"`
	PagIBIG              money.Amount `json:"pagibig"`
	TotalStatutory       money.Amount `json:"total_statutory"`
	TaxableIncome        money.Amount `json:"taxable_income"`
	WithholdingTax       money.Amount `json:"withholding_tax"`
	OtherDeductions      money.Amount `json:"other_deductions"`
	NonTaxableAllowances money.Amount `json:"non_taxable_allowances"`
	TotalDeductions      money.Amount `json:"total_deductions"`
	NetPay               money.Amount `json:"net_pay"`
	ComputedAt           time.Time    `json:"computed_at"`
}

func NewResultResponse(r Result) ResultResponse {
	return ResultResponse{
		EmployeeID:           r.EmployeeID,
		EmployeeExternalID:   r.EmployeeExternalID,
		EmployeeName:         r.EmployeeName,
		GrossIncome:          r.GrossIncome,
		SSS:                  r.SSS,
		PhilHealth:           r.PhilHealth,
		PagIBIG:              r.PagIBIG,
		TotalStatutory:       r.TotalStatutory,
		TaxableIncome:        r.TaxableIncome,
		WithholdingTax:       r.WithholdingTax,
		OtherDeductions:      r.OtherDeductions,
		NonTaxableAllowances: r.NonTaxableAllowances,
		TotalDeductions:      r.TotalDeductions,
		NetPay:               r.NetPay,
		ComputedAt:           r.ComputedAt,
	}
}

type RunSummaryResponse struct {
	RunID                string            `json:"run_id"`
	Status               Status            `json:"status"`
	EmployeeCount        int               `json:"employee_count"`
	FailedCount          int               `json:"failed_count"`
	TotalGrossIncome     money.Amount      `json:"total_gross_income"`
	TotalSSS             money.Amount      `json:"total_sss"`
	TotalPhilHealth      money.Amount      `json:"total_philhealth"`
	TotalPagIBIG         money.Amount      `json:"total_pagibig"`
	TotalWithholdingTax  money.Amount      `json:"total_withholding_tax"`
	TotalOtherDeductions money.Amount      `json:"total_other_deductions"`
	TotalDeductions      money.Amount      `json:"total_deductions"`
	TotalNetPay          money.Amount      `json:"total_net_pay"`
	FailedEmployees      []EmployeeFailure `json:"failed_employees"`
}

// Export is a rendered results workbook.
type Export struct {
	FileName    string
	ContentType string
	Content     []byte
}
