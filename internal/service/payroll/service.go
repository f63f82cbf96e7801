package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

const EventRunStatus = "run.status"

// EventPublisher receives run status changes; *sse.Hub implements it.
type EventPublisher interface {
	Publish(event sse.Event) int
}

// Recorder receives computation outcomes; *metrics.Payroll implements it.
type Recorder interface {
	ComputePass(outcome string, employees, failed int, d time.Duration)
}

type Options struct {
	// Workers bounds the per-employee fan-out of one computation pass.
	Workers int
	LockTTL time.Duration

	// Archive stores the results workbook of finalized runs. Optional.
	Archive storage.FileStorage
	// Metrics is optional.
	Metrics Recorder
}

type PayrollServiceImpl struct {
	transactor   database.Transactor
	runRepo      payroll.RunRepository
	itemRepo     payroll.LineItemRepository
	resultRepo   payroll.ResultRepository
	employeeRepo employee.EmployeeRepository
	rules        statutory.Source
	locker       lock.Locker
	dispatcher   queue.Dispatcher
	events       EventPublisher
	opts         Options
	now          func() time.Time
}

func NewPayrollService(
	transactor database.Transactor,
	runRepo payroll.RunRepository,
	itemRepo payroll.LineItemRepository,
	resultRepo payroll.ResultRepository,
	employeeRepo employee.EmployeeRepository,
	rules statutory.Source,
	locker lock.Locker,
	dispatcher queue.Dispatcher,
	events EventPublisher,
	opts Options,
) payroll.Service {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &PayrollServiceImpl{
		transactor:   transactor,
		runRepo:      runRepo,
		itemRepo:     itemRepo,
		resultRepo:   resultRepo,
		employeeRepo: employeeRepo,
		rules:        rules,
		locker:       locker,
		dispatcher:   dispatcher,
		events:       events,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ========== INGESTION ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, scope tenant.Scope, req payroll.CreateRunRequest) (payroll.CreateRunResponse, error) {
	if !scope.Valid() {
		return payroll.CreateRunResponse{}, tenant.ErrMissingScope
	}
	if err := req.Validate(); err != nil {
		return payroll.CreateRunResponse{}, fmt.Errorf("%w: %w", payroll.ErrInvalidInput, err)
	}
	start, end, payout, err := req.Dates()
	if err != nil {
		return payroll.CreateRunResponse{}, fmt.Errorf("%w: %v", payroll.ErrInvalidPeriod, err)
	}

	externalIDs := make([]string, 0, len(req.Employees))
	for _, emp := range req.Employees {
		externalIDs = append(externalIDs, emp.ExternalEmployeeID)
	}
	known, err := s.employeeRepo.ResolveExternalIDs(ctx, scope, externalIDs)
	if err != nil {
		return payroll.CreateRunResponse{}, fmt.Errorf("failed to resolve employees: %w", err)
	}

	now := s.now()
	run := payroll.Run{
		TenantID:    scope.TenantID,
		PeriodStart: start,
		PeriodEnd:   end,
		PayoutDate:  payout,
		Status:      payroll.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	skipped := []string{}
	var items []payroll.LineItem
	for _, emp := range req.Employees {
		employeeID, ok := known[emp.ExternalEmployeeID]
		if !ok {
			skipped = append(skipped, emp.ExternalEmployeeID)
			continue
		}
		for _, in := range emp.Items {
			items = append(items, payroll.LineItem{
				TenantID:    scope.TenantID,
				EmployeeID:  employeeID,
				Description: in.Description,
				Amount:      *in.Amount,
				Category:    payroll.Category(in.Category),
				CreatedAt:   now,
			})
		}
	}
	sort.Strings(skipped)

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.runRepo.Create(ctx, run)
		if err != nil {
			return fmt.Errorf("failed to create payroll run: %w", err)
		}
		run = created
		for i := range items {
			items[i].RunID = run.ID
		}
		if len(items) == 0 {
			return nil
		}
		if err := s.itemRepo.CreateBatch(ctx, items); err != nil {
			return fmt.Errorf("failed to create line items: %w", err)
		}
		return nil
	})
	if err != nil {
		return payroll.CreateRunResponse{}, err
	}

	if len(skipped) > 0 {
		slog.Warn("Skipped unknown employees during ingestion", "tenant_id", scope.TenantID, "run_id", run.ID, "skipped", skipped)
	}
	slog.Info("Payroll run ingested", "tenant_id", scope.TenantID, "run_id", run.ID, "items", len(items))
	s.publish(run)

	// The run is committed; a failed handoff is recovered by the stale run sweeper.
	if err := s.dispatcher.Dispatch(ctx, queue.Job{TenantID: scope.TenantID, RunID: run.ID}); err != nil {
		slog.Error("Failed to dispatch payroll computation", "tenant_id", scope.TenantID, "run_id", run.ID, "error", err)
	}

	return payroll.CreateRunResponse{
		Run:              payroll.NewRunResponse(run),
		ItemCount:        len(items),
		SkippedEmployees: skipped,
	}, nil
}

// ========== LIFECYCLE ==========

func (s *PayrollServiceImpl) Finalize(ctx context.Context, scope tenant.Scope, runID string) (payroll.RunResponse, error) {
	if !scope.Valid() {
		return payroll.RunResponse{}, tenant.ErrMissingScope
	}

	run, err := s.runRepo.GetByID(ctx, scope, runID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	if !run.Status.CanTransitionTo(payroll.StatusFinalized) {
		return payroll.RunResponse{}, fmt.Errorf("%w: cannot finalize a %s run", payroll.ErrInvalidTransition, run.Status)
	}

	run, err = s.runRepo.UpdateStatus(ctx, scope, runID, payroll.StatusComputed, payroll.StatusFinalized)
	if err != nil {
		return payroll.RunResponse{}, err
	}

	slog.Info("Payroll run finalized", "tenant_id", scope.TenantID, "run_id", runID)
	s.publish(run)

	// The run is finalized either way; a missing archive is re-rendered on export.
	if err := s.archive(ctx, scope, run); err != nil {
		slog.Error("Failed to archive finalized run", "tenant_id", scope.TenantID, "run_id", runID, "error", err)
	}
	return payroll.NewRunResponse(run), nil
}

// ========== QUERIES ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, scope tenant.Scope, runID string) (payroll.RunResponse, error) {
	if !scope.Valid() {
		return payroll.RunResponse{}, tenant.ErrMissingScope
	}
	run, err := s.runRepo.GetByID(ctx, scope, runID)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return payroll.NewRunResponse(run), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, scope tenant.Scope, filter payroll.RunFilter) (payroll.ListRunResponse, error) {
	if !scope.Valid() {
		return payroll.ListRunResponse{}, tenant.ErrMissingScope
	}
	if err := filter.Validate(); err != nil {
		return payroll.ListRunResponse{}, err
	}
	filter.Normalize()

	runs, total, err := s.runRepo.List(ctx, scope, filter)
	if err != nil {
		return payroll.ListRunResponse{}, err
	}

	data := make([]payroll.RunResponse, 0, len(runs))
	for _, run := range runs {
		data = append(data, payroll.NewRunResponse(run))
	}
	return payroll.ListRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// visibleResults loads a run's results, refusing runs whose computation has
// not completed so a partial result set is never exposed.
func (s *PayrollServiceImpl) visibleResults(ctx context.Context, scope tenant.Scope, runID string) (payroll.Run, []payroll.Result, error) {
	if !scope.Valid() {
		return payroll.Run{}, nil, tenant.ErrMissingScope
	}
	run, err := s.runRepo.GetByID(ctx, scope, runID)
	if err != nil {
		return payroll.Run{}, nil, err
	}
	if !run.Status.ResultsVisible() {
		return payroll.Run{}, nil, fmt.Errorf("%w: run is %s", payroll.ErrRunNotComputed, run.Status)
	}
	results, err := s.resultRepo.ListByRun(ctx, scope, runID)
	if err != nil {
		return payroll.Run{}, nil, err
	}
	return run, results, nil
}

func (s *PayrollServiceImpl) ListResults(ctx context.Context, scope tenant.Scope, runID string) ([]payroll.ResultResponse, error) {
	_, results, err := s.visibleResults(ctx, scope, runID)
	if err != nil {
		return nil, err
	}

	resp := make([]payroll.ResultResponse, 0, len(results))
	for _, r := range results {
		resp = append(resp, payroll.NewResultResponse(r))
	}
	return resp, nil
}

func (s *PayrollServiceImpl) Summary(ctx context.Context, scope tenant.Scope, runID string) (payroll.RunSummaryResponse, error) {
	run, results, err := s.visibleResults(ctx, scope, runID)
	if err != nil {
		return payroll.RunSummaryResponse{}, err
	}

	sum := payroll.RunSummaryResponse{
		RunID:           run.ID,
		Status:          run.Status,
		EmployeeCount:   len(results),
		FailedCount:     len(run.FailedEmployees),
		FailedEmployees: run.FailedEmployees,
	}
	if sum.FailedEmployees == nil {
		sum.FailedEmployees = []payroll.EmployeeFailure{}
	}
	for _, r := range results {
		sum.TotalGrossIncome = sum.TotalGrossIncome.Add(r.GrossIncome)
		sum.TotalSSS = sum.TotalSSS.Add(r.SSS)
		sum.TotalPhilHealth = sum.TotalPhilHealth.Add(r.PhilHealth)
		sum.TotalPagIBIG = sum.TotalPagIBIG.Add(r.PagIBIG)
		sum.TotalWithholdingTax = sum.TotalWithholdingTax.Add(r.WithholdingTax)
		sum.TotalOtherDeductions = sum.TotalOtherDeductions.Add(r.OtherDeductions)
		sum.TotalDeductions = sum.TotalDeductions.Add(r.TotalDeductions)
		sum.TotalNetPay = sum.TotalNetPay.Add(r.NetPay)
	}
	return sum, nil
}

func (s *PayrollServiceImpl) publish(run payroll.Run) {
	if s.events == nil {
		return
	}
	s.events.Publish(sse.Event{
		TenantID: run.TenantID,
		Event:    EventRunStatus,
		Data: map[string]interface{}{
			"run_id":       run.ID,
			"status":       run.Status,
			"failed_count": len(run.FailedEmployees),
		},
	})
}
