package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidAPIKey):
		Unauthorized(w, "Invalid API key")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, tenant.ErrMissingScope):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrTenantInactive):
		Forbidden(w, "Tenant is inactive")

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrDuplicateComputation):
		Conflict(w, "DUPLICATE_COMPUTATION", "Payroll run has already been computed")
	case errors.Is(err, payroll.ErrInvalidTransition):
		Conflict(w, "INVALID_TRANSITION", "Payroll run status does not allow this action")
	case errors.Is(err, payroll.ErrRunNotComputed):
		Conflict(w, "RUN_NOT_COMPUTED", "Payroll run results are not available yet")
	case errors.Is(err, payroll.ErrRunLocked):
		ServiceUnavailable(w, "RUN_LOCKED", "Payroll run is being computed, retry later")
	case errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, "Invalid payroll period", nil)

	// Statutory tables
	case errors.Is(err, statutory.ErrSourceUnavailable):
		ServiceUnavailable(w, "STATUTORY_SOURCE_UNAVAILABLE", "Statutory tables are unavailable")
	case errors.Is(err, statutory.ErrConfiguration):
		slog.Error("Statutory configuration error", "error", err)
		InternalServerError(w, "Statutory tables are missing or invalid")
	case errors.Is(err, statutory.ErrInvalidInput):
		UnprocessableEntity(w, err.Error())

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
