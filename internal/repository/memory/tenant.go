package memory

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
)

type TenantRepository struct {
	store *Store
}

func NewTenantRepository(store *Store) *TenantRepository {
	return &TenantRepository{store: store}
}

func (r *TenantRepository) Create(ctx context.Context, t auth.Tenant) (auth.Tenant, error) {
	defer r.store.lockWrite(ctx)()

	for _, existing := range r.store.tenants {
		if existing.KeyPrefix == t.KeyPrefix {
			return auth.Tenant{}, fmt.Errorf("key prefix %s already in use", t.KeyPrefix)
		}
	}
	if t.ID == "" {
		t.ID = newID()
	}
	r.store.tenants[t.ID] = t
	return t, nil
}

func (r *TenantRepository) GetByKeyPrefix(ctx context.Context, prefix string) (auth.Tenant, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, t := range r.store.tenants {
		if t.KeyPrefix == prefix {
			return t, nil
		}
	}
	return auth.Tenant{}, auth.ErrTenantNotFound
}
