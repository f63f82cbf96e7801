package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/config"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	appHTTP "github.com/cmlabs-hris/payroll-engine-go/internal/handler/http"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/memory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/postgresql"
	serviceAuth "github.com/cmlabs-hris/payroll-engine-go/internal/service/auth"
	employeeService "github.com/cmlabs-hris/payroll-engine-go/internal/service/employee"
	payrollService "github.com/cmlabs-hris/payroll-engine-go/internal/service/payroll"
	statutoryService "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
	"github.com/redis/go-redis/v9"
)

// repositories is the storage the services run on, Postgres or in-process.
type repositories struct {
	transactor database.Transactor
	tenants    auth.TenantRepository
	employees  employee.EmployeeRepository
	runs       payroll.RunRepository
	items      payroll.LineItemRepository
	results    payroll.ResultRepository
	tables     statutory.TableStore
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).With(
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========== STORAGE ==========

	repos, closeDB, err := openRepositories(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	rules, err := openStatutorySource(ctx, cfg, repos.tables)
	if err != nil {
		return err
	}

	locker, closeRedis, err := openLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	archive, err := openArchive(ctx, cfg)
	if err != nil {
		return err
	}

	// ========== SERVICES ==========

	registry := metrics.NewRegistry()
	payrollMetrics := metrics.NewPayroll(registry)
	hub := sse.NewHub()
	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	authSvc := serviceAuth.NewAuthService(repos.tenants, jwtService)
	employeeSvc := employeeService.NewEmployeeService(repos.employees)

	// The local dispatcher calls back into the payroll service, which in
	// turn dispatches through it, so the handler resolves the service late.
	var payrollSvc payroll.Service
	var dispatcher queue.Dispatcher

	switch cfg.Compute.Dispatcher {
	case "pubsub":
		ps, err := queue.NewPubSubDispatcher(ctx, queue.PubSubOptions{
			ProjectID:       cfg.PubSub.ProjectID,
			TopicID:         cfg.PubSub.TopicID,
			CredentialsJSON: cfg.PubSub.CredentialsJSON,
		})
		if err != nil {
			return fmt.Errorf("init pubsub dispatcher: %w", err)
		}
		defer ps.Close()
		dispatcher = ps
	default:
		local := queue.NewLocalDispatcher(func(ctx context.Context, job queue.Job) error {
			return payrollService.HandleJob(ctx, payrollSvc, job)
		}, queue.LocalOptions{
			Workers:     cfg.Compute.QueueWorkers,
			MaxAttempts: cfg.Compute.MaxAttempts,
		})
		dispatcher = local
		local.Start()
		defer local.Stop()
	}

	payrollSvc = payrollService.NewPayrollService(
		repos.transactor,
		repos.runs,
		repos.items,
		repos.results,
		repos.employees,
		rules,
		locker,
		dispatcher,
		hub,
		payrollService.Options{
			Workers: cfg.Compute.Workers,
			LockTTL: cfg.Compute.LockTTL,
			Archive: archive,
			Metrics: payrollMetrics,
		},
	)

	if cfg.Database.Driver == "memory" {
		if err := seedDevelopmentTenant(ctx, authSvc); err != nil {
			return err
		}
	}

	// ========== BACKGROUND JOBS ==========

	scheduler := cron.NewScheduler(cron.WithObserver(payrollMetrics))
	cron.NewPayrollJobs(repos.runs, dispatcher, cron.PayrollJobsOptions{
		Interval:   cfg.Compute.SweepInterval,
		StaleAfter: cfg.Compute.SweepAge,
		Metrics:    payrollMetrics,
	}).RegisterJobs(scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	// ========== HTTP ==========

	var pubsubHandler appHTTP.PubSubHandler
	if cfg.Compute.Dispatcher == "pubsub" {
		pubsubHandler = appHTTP.NewPubSubHandler(payrollSvc, cfg.PubSub.PushToken)
	}

	router := appHTTP.NewRouter(appHTTP.RouterConfig{
		AppName:        cfg.App.Name,
		Version:        cfg.App.Version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogRequests:    true,
	}, jwtService, appHTTP.Handlers{
		Auth:     appHTTP.NewAuthHandler(authSvc),
		Employee: appHTTP.NewEmployeeHandler(employeeSvc),
		Payroll:  appHTTP.NewPayrollHandler(payrollSvc, dispatcher),
		Events:   appHTTP.NewEventsHandler(authSvc, jwtService, hub),
		PubSub:   pubsubHandler,
		Metrics:  registry.Handler(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Event streams never go idle on their own.
	server.RegisterOnShutdown(hub.Close)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server running", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openRepositories(ctx context.Context, cfg *config.Config) (repositories, func(), error) {
	if cfg.Database.Driver == "memory" {
		slog.Warn("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			transactor: memory.NewTransactor(store),
			tenants:    memory.NewTenantRepository(store),
			employees:  memory.NewEmployeeRepository(store),
			runs:       memory.NewRunRepository(store),
			items:      memory.NewLineItemRepository(store),
			results:    memory.NewResultRepository(store),
		}, func() {}, nil
	}

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := postgresql.Migrate(ctx, db); err != nil {
			db.Close()
			return repositories{}, nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("Database schema applied")
	}

	return repositories{
		transactor: postgresql.NewTransactor(db),
		tenants:    postgresql.NewTenantRepository(db),
		employees:  postgresql.NewEmployeeRepository(db),
		runs:       postgresql.NewRunRepository(db),
		items:      postgresql.NewLineItemRepository(db),
		results:    postgresql.NewResultRepository(db),
		tables:     postgresql.NewStatutoryTableRepository(db),
	}, db.Close, nil
}

func openStatutorySource(ctx context.Context, cfg *config.Config, tables statutory.TableStore) (statutory.Source, error) {
	if cfg.Statutory.Source == "database" {
		source := statutoryService.NewDBSource(tables, cfg.Statutory.Region, cfg.Statutory.CacheTTL)
		// Fail at startup rather than on the first run.
		if _, err := source.RuleSet(ctx, time.Now()); err != nil {
			return nil, fmt.Errorf("load statutory tables: %w", err)
		}
		return source, nil
	}

	source, err := statutoryService.NewFileSource(cfg.Statutory.Dir)
	if err != nil {
		return nil, fmt.Errorf("load statutory tables: %w", err)
	}
	if cfg.Statutory.Watch {
		go func() {
			if err := source.Watch(ctx); err != nil {
				slog.Error("Statutory table watcher stopped", "error", err)
			}
		}()
	}
	return source, nil
}

func openLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		slog.Info("Run locks are in-process")
		return lock.NewLocalLocker(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	slog.Info("Run locks use Redis", "addr", cfg.Redis.Addr)
	return lock.NewRedisLocker(rdb), func() { rdb.Close() }, nil
}

func openArchive(ctx context.Context, cfg *config.Config) (storage.FileStorage, error) {
	switch cfg.Archive.Driver {
	case "local":
		return storage.NewLocalStorage(cfg.Archive.Dir)
	case "gcs":
		return storage.NewGCSStorage(ctx, storage.GCSOptions{
			Bucket:          cfg.Archive.Bucket,
			Prefix:          cfg.Archive.Prefix,
			CredentialsJSON: cfg.Archive.CredentialsJSON,
		})
	}
	return nil, nil
}

func seedDevelopmentTenant(ctx context.Context, authSvc auth.AuthService) error {
	created, err := authSvc.CreateTenant(ctx, auth.CreateTenantRequest{Name: "Development"})
	if err != nil {
		return fmt.Errorf("seed development tenant: %w", err)
	}
	slog.Warn("Development tenant created", "tenant_id", created.TenantID, "api_key", created.APIKey)
	return nil
}
