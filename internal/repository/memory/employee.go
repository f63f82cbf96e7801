package memory

import (
	"context"
	"sort"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
)

type EmployeeRepository struct {
	store *Store
}

func NewEmployeeRepository(store *Store) *EmployeeRepository {
	return &EmployeeRepository{store: store}
}

func (r *EmployeeRepository) Upsert(ctx context.Context, e employee.Employee) (employee.Employee, error) {
	defer r.store.lockWrite(ctx)()

	for id, existing := range r.store.employees {
		if existing.TenantID == e.TenantID && existing.ExternalID == e.ExternalID {
			e.ID = id
			e.CreatedAt = existing.CreatedAt
			r.store.employees[id] = e
			return e, nil
		}
	}
	if e.ID == "" {
		e.ID = newID()
	}
	r.store.employees[e.ID] = e
	return e, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (employee.Employee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	e, ok := r.store.employees[id]
	if !ok || e.TenantID != scope.TenantID {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *EmployeeRepository) List(ctx context.Context, scope tenant.Scope, filter employee.EmployeeFilter) ([]employee.Employee, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var list []employee.Employee
	for _, e := range r.store.employees {
		if e.TenantID == scope.TenantID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ExternalID < list[j].ExternalID })

	total := int64(len(list))
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= len(list) {
		return []employee.Employee{}, total, nil
	}
	end := start + filter.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], total, nil
}

func (r *EmployeeRepository) ResolveExternalIDs(ctx context.Context, scope tenant.Scope, externalIDs []string) (map[string]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	wanted := make(map[string]struct{}, len(externalIDs))
	for _, id := range externalIDs {
		wanted[id] = struct{}{}
	}
	resolved := make(map[string]string)
	for id, e := range r.store.employees {
		if e.TenantID != scope.TenantID {
			continue
		}
		if _, ok := wanted[e.ExternalID]; ok {
			resolved[e.ExternalID] = id
		}
	}
	return resolved, nil
}
