// Command payrollctl provisions tenants and seeds statutory tables.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmlabs-hris/payroll-engine-go/internal/config"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/postgresql"
	serviceAuth "github.com/cmlabs-hris/payroll-engine-go/internal/service/auth"
	statutoryService "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "payrollctl",
		Usage: "administer the payroll engine database",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "apply the database schema",
				Action: migrate,
			},
			{
				Name:  "create-tenant",
				Usage: "create a tenant and print its API key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
				},
				Action: createTenant,
			},
			{
				Name:  "load-tables",
				Usage: "validate a directory of statutory YAML tables and store them",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: "configs/statutory"},
					&cli.StringFlag{Name: "region", Value: "PH"},
				},
				Action: loadTables,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("payrollctl failed", "error", err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context) (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}

func migrate(c *cli.Context) error {
	_, db, err := openDB(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgresql.Migrate(c.Context, db); err != nil {
		return err
	}
	slog.Info("Schema applied")
	return nil
}

func createTenant(c *cli.Context) error {
	cfg, db, err := openDB(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	authSvc := serviceAuth.NewAuthService(
		postgresql.NewTenantRepository(db),
		jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration),
	)
	created, err := authSvc.CreateTenant(c.Context, auth.CreateTenantRequest{Name: c.String("name")})
	if err != nil {
		return err
	}

	// The key is not stored in plaintext; this is the only time it is shown.
	fmt.Fprintf(c.App.Writer, "tenant_id: %s\napi_key:   %s\n", created.TenantID, created.APIKey)
	return nil
}

func loadTables(c *cli.Context) error {
	versions, err := statutoryService.LoadDir(c.String("dir"))
	if err != nil {
		return err
	}

	_, db, err := openDB(c.Context)
	if err != nil {
		return err
	}
	defer db.Close()

	tables := postgresql.NewStatutoryTableRepository(db)
	err = postgresql.NewTransactor(db).WithinTransaction(c.Context, func(ctx context.Context) error {
		return tables.SaveVersions(ctx, c.String("region"), versions)
	})
	if err != nil {
		return err
	}

	slog.Info("Statutory tables stored",
		"region", c.String("region"),
		"contributions", len(versions.Contributions),
		"tax_tables", len(versions.Tax))
	return nil
}
