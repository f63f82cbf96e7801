package auth

import "context"

type TenantRepository interface {
	Create(ctx context.Context, tenant Tenant) (Tenant, error)
	GetByKeyPrefix(ctx context.Context, prefix string) (Tenant, error)
}
