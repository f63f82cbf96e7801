package payroll

import (
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
)

var (
	// Shared with the statutory package so one errors.Is check covers both.
	ErrInvalidInput  = statutory.ErrInvalidInput
	ErrConfiguration = statutory.ErrConfiguration

	ErrRunNotFound          = errors.New("payroll run not found")
	ErrDuplicateComputation = errors.New("payroll run already computed")
	ErrInvalidTransition    = errors.New("invalid payroll run status transition")
	ErrRunNotComputed       = errors.New("payroll run results are not available until computed")
	ErrRunLocked            = errors.New("payroll run is being computed by another worker")
	ErrInvalidPeriod        = errors.New("invalid payroll period")
)

// CategoryError reports a line item whose category is not in the closed set.
type CategoryError struct {
	Category string
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("unknown line item category %q", e.Category)
}

func (e *CategoryError) Unwrap() error { return ErrInvalidInput }

// EmployeeError aborts a single employee's computation without failing the run.
type EmployeeError struct {
	EmployeeID string
	Err        error
}

func (e *EmployeeError) Error() string {
	return fmt.Sprintf("employee %s: %v", e.EmployeeID, e.Err)
}

func (e *EmployeeError) Unwrap() error { return e.Err }

// Failure converts the error into the record stored on the run.
func (e *EmployeeError) Failure() EmployeeFailure {
	return EmployeeFailure{EmployeeID: e.EmployeeID, Reason: e.Err.Error()}
}
