package employee

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type SyncEmployeeRequest struct {
	ExternalID   string          `json:"external_id" validate:"required,max=64"`
	FirstName    string          `json:"first_name" validate:"required,max=100"`
	LastName     string          `json:"last_name" validate:"required,max=100"`
	Email        *string         `json:"email,omitempty" validate:"omitempty,email"`
	TIN          *string         `json:"tin,omitempty" validate:"omitempty,max=32"`
	SSSNo        *string         `json:"sss_no,omitempty" validate:"omitempty,max=32"`
	PhilHealthNo *string         `json:"phic_no,omitempty" validate:"omitempty,max=32"`
	PagIBIGNo    *string         `json:"hdmf_no,omitempty" validate:"omitempty,max=32"`
	DailyRate    decimal.Decimal `json:"daily_rate"`
	MonthlyRate  decimal.Decimal `json:"monthly_rate"`
}

func (r *SyncEmployeeRequest) Validate() error {
	errs := validator.Struct(r)

	if r.DailyRate.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "daily_rate", Message: "must be non-negative"})
	}
	if r.MonthlyRate.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "monthly_rate", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EmployeeResponse struct {
	ID           string          `json:"id"`
	ExternalID   string          `json:"external_id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        *string         `json:"email,omitempty"`
	TIN          *string         `json:"tin,omitempty"`
	SSSNo        *string         `json:"sss_no,omitempty"`
	PhilHealthNo *string         `json:"phic_no,omitempty"`
	PagIBIGNo    *string         `json:"hdmf_no,omitempty"`
	DailyRate    decimal.Decimal `json:"daily_rate"`
	MonthlyRate  decimal.Decimal `json:"monthly_rate"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewEmployeeResponse(e Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:           e.ID,
		ExternalID:   e.ExternalID,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		TIN:          e.TIN,
		SSSNo:        e.SSSNo,
		PhilHealthNo: e.PhilHealthNo,
		PagIBIGNo:    e.PagIBIGNo,
		DailyRate:    e.DailyRate,
		MonthlyRate:  e.MonthlyRate,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

type EmployeeFilter struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (f *EmployeeFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 100
	}
}

type ListEmployeeResponse struct {
	Employees  []EmployeeResponse `json:"employees"`
	TotalCount int64              `json:"total_count"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func NewListEmployeeResponse(employees []Employee, total int64, filter EmployeeFilter) ListEmployeeResponse {
	resp := ListEmployeeResponse{
		Employees:  make([]EmployeeResponse, 0, len(employees)),
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, e := range employees {
		resp.Employees = append(resp.Employees, NewEmployeeResponse(e))
	}
	return resp
}
