package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	statutorySvc "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
	"golang.org/x/sync/errgroup"
)

// Computation pass outcomes, as reported to the Recorder.
const (
	OutcomeComputed           = "computed"
	OutcomeDuplicate          = "duplicate"
	OutcomeLocked             = "locked"
	OutcomeNotFound           = "not_found"
	OutcomeConfigurationError = "configuration_error"
	OutcomeInterrupted        = "interrupted"
)

func lockKey(scope tenant.Scope, runID string) string {
	return "payroll:run:" + scope.TenantID + ":" + runID
}

// Compute runs one computation pass over a run.
//
// The run moves draft -> computing before any result is written and
// computing -> computed only after every result is stored, so a run never
// reports computed with results missing. Each employee's result is upserted
// on its own; a pass interrupted by cancellation leaves the run computing
// with a consistent subset of results, and the next pass completes it.
func (s *PayrollServiceImpl) Compute(ctx context.Context, scope tenant.Scope, runID string) error {
	if !scope.Valid() {
		return tenant.ErrMissingScope
	}
	started := s.now()
	record := func(outcome string, employees, failed int) {
		if s.opts.Metrics != nil {
			s.opts.Metrics.ComputePass(outcome, employees, failed, s.now().Sub(started))
		}
	}

	lk, err := s.locker.Obtain(ctx, lockKey(scope, runID), s.opts.LockTTL)
	if errors.Is(err, lock.ErrNotObtained) {
		record(OutcomeLocked, 0, 0)
		return fmt.Errorf("%w: %s", payroll.ErrRunLocked, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to obtain run lock: %w", err)
	}
	defer func() {
		// Released on a fresh context so a cancelled pass still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil {
			slog.Warn("Failed to release run lock", "run_id", runID, "error", err)
		}
	}()

	run, err := s.runRepo.GetByID(ctx, scope, runID)
	if errors.Is(err, payroll.ErrRunNotFound) {
		slog.Info("Payroll run not found, nothing to compute", "tenant_id", scope.TenantID, "run_id", runID)
		record(OutcomeNotFound, 0, 0)
		return nil
	}
	if err != nil {
		return err
	}
	if run.Status == payroll.StatusComputed || run.Status == payroll.StatusFinalized {
		slog.Warn("Rejected duplicate computation", "tenant_id", scope.TenantID, "run_id", runID, "status", run.Status)
		record(OutcomeDuplicate, 0, 0)
		return fmt.Errorf("%w: run %s is %s", payroll.ErrDuplicateComputation, runID, run.Status)
	}

	// Rules are resolved before the status changes: a configuration error
	// leaves the run where it was.
	rules, err := s.rules.RuleSet(ctx, run.PeriodEnd)
	if err != nil {
		slog.Error("Statutory rules unavailable for run", "tenant_id", scope.TenantID, "run_id", runID, "period_end", run.PeriodEnd.Format(payroll.DateLayout), "error", err)
		record(OutcomeConfigurationError, 0, 0)
		return fmt.Errorf("failed to load statutory rules: %w", err)
	}
	calc := statutorySvc.NewCalculator(rules)

	if run.Status == payroll.StatusComputing {
		slog.Info("Resuming interrupted computation", "tenant_id", scope.TenantID, "run_id", runID)
	}
	run, err = s.runRepo.UpdateStatus(ctx, scope, runID, run.Status, payroll.StatusComputing)
	if err != nil {
		return err
	}
	s.publish(run)

	items, err := s.itemRepo.ListByRun(ctx, scope, runID)
	if err != nil {
		return fmt.Errorf("failed to load line items: %w", err)
	}
	agg := Aggregate(items)
	for employeeID, err := range agg.Failures {
		slog.Warn("Employee excluded from run", "tenant_id", scope.TenantID, "run_id", runID, "employee_id", employeeID, "error", err)
	}

	written, failures, err := s.computeResults(ctx, calc, run, agg)
	if err != nil {
		slog.Warn("Computation pass interrupted, run stays computing", "tenant_id", scope.TenantID, "run_id", runID, "written", written, "error", err)
		record(OutcomeInterrupted, written, 0)
		return err
	}

	err = s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.runRepo.SetFailures(ctx, scope, runID, failures); err != nil {
			return err
		}
		run, err = s.runRepo.UpdateStatus(ctx, scope, runID, payroll.StatusComputing, payroll.StatusComputed)
		return err
	})
	if err != nil {
		record(OutcomeInterrupted, written, 0)
		return fmt.Errorf("failed to mark run computed: %w", err)
	}
	record(OutcomeComputed, written, len(failures))

	slog.Info("Payroll run computed",
		"tenant_id", scope.TenantID,
		"run_id", runID,
		"employees", written,
		"failed", len(failures),
		"duration", s.now().Sub(started))
	s.publish(run)
	return nil
}

// computeResults fans employees out over a bounded worker group. A failure
// confined to one employee is recorded and the others continue; a storage
// error or cancellation stops the pass.
func (s *PayrollServiceImpl) computeResults(ctx context.Context, calc statutorySvc.Calculator, run payroll.Run, agg Aggregation) (int, []payroll.EmployeeFailure, error) {
	scope := tenant.Scope{TenantID: run.TenantID}
	now := s.now()

	var (
		mu       sync.Mutex
		written  int
		failures = agg.FailureRecords()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for _, employeeID := range agg.Employees() {
		employeeID := employeeID
		totals := agg.Totals[employeeID]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			result, err := BuildResult(calc, run, employeeID, totals, now)
			if err != nil {
				empErr := &payroll.EmployeeError{EmployeeID: employeeID, Err: err}
				slog.Warn("Employee computation failed", "tenant_id", scope.TenantID, "run_id", run.ID, "employee_id", employeeID, "error", err)
				mu.Lock()
				failures = append(failures, empErr.Failure())
				mu.Unlock()
				return nil
			}

			if _, err := s.resultRepo.Upsert(gctx, result); err != nil {
				return fmt.Errorf("failed to store result for employee %s: %w", employeeID, err)
			}
			mu.Lock()
			written++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	sortFailures(failures)
	return written, failures, err
}
