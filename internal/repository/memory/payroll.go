package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

type RunRepository struct {
	store *Store
	now   func() time.Time
}

func NewRunRepository(store *Store) *RunRepository {
	return &RunRepository{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (r *RunRepository) Create(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	defer r.store.lockWrite(ctx)()

	if run.ID == "" {
		run.ID = newID()
	}
	if _, exists := r.store.runs[run.ID]; exists {
		return payroll.Run{}, fmt.Errorf("payroll run %s already exists", run.ID)
	}
	r.store.runs[run.ID] = run
	return run, nil
}

func (r *RunRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (payroll.Run, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	run, ok := r.store.runs[id]
	if !ok || run.TenantID != scope.TenantID {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	return run, nil
}

func (r *RunRepository) List(ctx context.Context, scope tenant.Scope, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var runs []payroll.Run
	for _, run := range r.store.runs {
		if run.TenantID != scope.TenantID {
			continue
		}
		if filter.Status != nil && string(run.Status) != *filter.Status {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		a, b := runs[i], runs[j]
		if !a.PeriodEnd.Equal(b.PeriodEnd) {
			if filter.SortOrder == "asc" {
				return a.PeriodEnd.Before(b.PeriodEnd)
			}
			return a.PeriodEnd.After(b.PeriodEnd)
		}
		return a.ID < b.ID
	})

	total := int64(len(runs))
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= len(runs) {
		return []payroll.Run{}, total, nil
	}
	end := start + filter.Limit
	if end > len(runs) {
		end = len(runs)
	}
	return runs[start:end], total, nil
}

func (r *RunRepository) UpdateStatus(ctx context.Context, scope tenant.Scope, id string, from, to payroll.Status) (payroll.Run, error) {
	defer r.store.lockWrite(ctx)()

	run, ok := r.store.runs[id]
	if !ok || run.TenantID != scope.TenantID {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	if run.Status != from || !from.CanTransitionTo(to) {
		return payroll.Run{}, fmt.Errorf("%w: run %s is %s, expected %s", payroll.ErrInvalidTransition, id, run.Status, from)
	}

	now := r.now()
	run.Status = to
	run.UpdatedAt = now
	switch to {
	case payroll.StatusComputed:
		run.ComputedAt = &now
	case payroll.StatusFinalized:
		run.FinalizedAt = &now
	}
	r.store.runs[id] = run
	return run, nil
}

func (r *RunRepository) SetFailures(ctx context.Context, scope tenant.Scope, id string, failures []payroll.EmployeeFailure) error {
	defer r.store.lockWrite(ctx)()

	run, ok := r.store.runs[id]
	if !ok || run.TenantID != scope.TenantID {
		return payroll.ErrRunNotFound
	}
	run.FailedEmployees = append([]payroll.EmployeeFailure(nil), failures...)
	r.store.runs[id] = run
	return nil
}

func (r *RunRepository) ListStale(ctx context.Context, statuses []payroll.Status, updatedBefore time.Time, limit int) ([]payroll.Run, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var runs []payroll.Run
	for _, run := range r.store.runs {
		if !run.UpdatedAt.Before(updatedBefore) {
			continue
		}
		for _, s := range statuses {
			if run.Status == s {
				runs = append(runs, run)
				break
			}
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].UpdatedAt.Before(runs[j].UpdatedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

type LineItemRepository struct {
	store *Store
}

func NewLineItemRepository(store *Store) *LineItemRepository {
	return &LineItemRepository{store: store}
}

func (r *LineItemRepository) CreateBatch(ctx context.Context, items []payroll.LineItem) error {
	defer r.store.lockWrite(ctx)()

	for _, item := range items {
		if item.ID == "" {
			item.ID = newID()
		}
		r.store.items = append(r.store.items, item)
	}
	return nil
}

func (r *LineItemRepository) ListByRun(ctx context.Context, scope tenant.Scope, runID string) ([]payroll.LineItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var items []payroll.LineItem
	for _, item := range r.store.items {
		if item.RunID == runID && item.TenantID == scope.TenantID {
			items = append(items, item)
		}
	}
	return items, nil
}

type ResultRepository struct {
	store *Store
}

func NewResultRepository(store *Store) *ResultRepository {
	return &ResultRepository{store: store}
}

func (r *ResultRepository) Upsert(ctx context.Context, result payroll.Result) (payroll.Result, error) {
	defer r.store.lockWrite(ctx)()

	key := resultKey{runID: result.RunID, employeeID: result.EmployeeID}
	if existing, ok := r.store.results[key]; ok {
		result.ID = existing.ID
	} else if result.ID == "" {
		result.ID = newID()
	}
	r.store.results[key] = result
	return result, nil
}

// ListByRun returns results ordered by employee, with the directory fields joined.
func (r *ResultRepository) ListByRun(ctx context.Context, scope tenant.Scope, runID string) ([]payroll.Result, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var results []payroll.Result
	for key, result := range r.store.results {
		if key.runID != runID || result.TenantID != scope.TenantID {
			continue
		}
		if emp, ok := r.store.employees[result.EmployeeID]; ok {
			ext, name := emp.ExternalID, emp.FullName()
			result.EmployeeExternalID = &ext
			result.EmployeeName = &name
		}
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].EmployeeID < results[j].EmployeeID })
	return results, nil
}
