package postgresql_test

import (
	"context"
	"os"
	"testing"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/postgresql"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// every table. Tests are skipped when the variable is unset.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolOptions{MaxConns: 10, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, postgresql.Migrate(ctx, db))
	truncateAll(t, db)
	return db
}

func truncateAll(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `TRUNCATE TABLE payroll_results, payroll_line_items, payroll_runs, employees, statutory_tables, tenants CASCADE`)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func createTenant(t *testing.T, db *database.DB, prefix string) auth.Tenant {
	t.Helper()
	tenant, err := postgresql.NewTenantRepository(db).Create(context.Background(), auth.Tenant{
		Name:      "Tenant " + prefix,
		KeyPrefix: prefix,
		KeyHash:   "hash",
		IsActive:  true,
	})
	require.NoError(t, err)
	return tenant
}
