package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	Compute(w http.ResponseWriter, r *http.Request)
	Finalize(w http.ResponseWriter, r *http.Request)

	// Reporting
	ListResults(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.Service
	dispatcher     queue.Dispatcher
}

func NewPayrollHandler(payrollService payroll.Service, dispatcher queue.Dispatcher) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, dispatcher: dispatcher}
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.CreateRunRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Error("CreateRun decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.payrollService.CreateRun(r.Context(), scope, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run created", result)
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	filter := payroll.RunFilter{
		Page:      1,
		Limit:     20,
		SortOrder: "desc",
	}
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = &status
	}
	if sortOrder := r.URL.Query().Get("sort_order"); sortOrder != "" {
		filter.SortOrder = sortOrder
	}

	result, err := h.payrollService.ListRuns(r.Context(), scope, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages(result.TotalCount, result.Limit),
	})
}

// Compute queues another computation pass. The pass itself runs on the
// dispatcher; a run that is already computed is acknowledged there.
func (h *payrollHandlerImpl) Compute(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.GetRun(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if run.Status == payroll.StatusComputed || run.Status == payroll.StatusFinalized {
		response.HandleError(w, payroll.ErrDuplicateComputation)
		return
	}

	job := queue.Job{ID: uuid.NewString(), TenantID: scope.TenantID, RunID: run.ID}
	if err := h.dispatcher.Dispatch(r.Context(), job); err != nil {
		slog.Error("Compute dispatch failed", "run_id", run.ID, "error", err)
		response.ServiceUnavailable(w, "DISPATCH_FAILED", "Computation could not be scheduled, retry later")
		return
	}

	response.Accepted(w, "Computation scheduled", run)
}

func (h *payrollHandlerImpl) Finalize(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.Finalize(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run finalized", result)
}

// ========== REPORTING ==========

func (h *payrollHandlerImpl) ListResults(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.ListResults(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.Summary(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	scope, err := tenant.FromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	export, err := h.payrollService.Export(r.Context(), scope, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Attachment(w, export.FileName, export.ContentType, export.Content)
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
