package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type tenantRepository struct {
	db *database.DB
}

func NewTenantRepository(db *database.DB) auth.TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(ctx context.Context, t auth.Tenant) (auth.Tenant, error) {
	q := GetQuerier(ctx, r.db)

	if t.ID == "" {
		t.ID = newID()
	}

	query := `
		INSERT INTO tenants (id, name, key_prefix, key_hash, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, key_prefix, key_hash, is_active, created_at, updated_at
	`

	var created auth.Tenant
	err := q.QueryRow(ctx, query, t.ID, t.Name, t.KeyPrefix, t.KeyHash, t.IsActive).Scan(
		&created.ID, &created.Name, &created.KeyPrefix, &created.KeyHash, &created.IsActive, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return auth.Tenant{}, fmt.Errorf("key prefix %s already issued: %w", t.KeyPrefix, err)
		}
		return auth.Tenant{}, fmt.Errorf("failed to create tenant: %w", err)
	}
	return created, nil
}

func (r *tenantRepository) GetByKeyPrefix(ctx context.Context, prefix string) (auth.Tenant, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, name, key_prefix, key_hash, is_active, created_at, updated_at
		FROM tenants
		WHERE key_prefix = $1
	`

	var t auth.Tenant
	err := q.QueryRow(ctx, query, prefix).Scan(
		&t.ID, &t.Name, &t.KeyPrefix, &t.KeyHash, &t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Tenant{}, auth.ErrTenantNotFound
		}
		return auth.Tenant{}, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}
