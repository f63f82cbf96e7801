package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/jackc/pgx/v5"
)

type runRepository struct {
	db *database.DB
}

func NewRunRepository(db *database.DB) payroll.RunRepository {
	return &runRepository{db: db}
}

const runColumns = `id, tenant_id, period_start, period_end, payout_date, status,
	failed_employees, computed_at, finalized_at, created_at, updated_at`

func scanRun(row pgx.Row) (payroll.Run, error) {
	var (
		run      payroll.Run
		failures []byte
	)
	err := row.Scan(
		&run.ID, &run.TenantID, &run.PeriodStart, &run.PeriodEnd, &run.PayoutDate, &run.Status,
		&failures, &run.ComputedAt, &run.FinalizedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return payroll.Run{}, err
	}
	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &run.FailedEmployees); err != nil {
			return payroll.Run{}, fmt.Errorf("failed to decode failed_employees: %w", err)
		}
	}
	return run, nil
}

func (r *runRepository) Create(ctx context.Context, run payroll.Run) (payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	if run.ID == "" {
		run.ID = newID()
	}
	failures, err := json.Marshal(nonNilFailures(run.FailedEmployees))
	if err != nil {
		return payroll.Run{}, err
	}

	query := `
		INSERT INTO payroll_runs (id, tenant_id, period_start, period_end, payout_date, status, failed_employees, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.ID, run.TenantID, run.PeriodStart, run.PeriodEnd, run.PayoutDate, run.Status, failures, run.CreatedAt, run.UpdatedAt,
	))
	if err != nil {
		return payroll.Run{}, fmt.Errorf("failed to create payroll run: %w", err)
	}
	return created, nil
}

func (r *runRepository) GetByID(ctx context.Context, scope tenant.Scope, id string) (payroll.Run, error) {
	if !validID(id) {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1 AND tenant_id = $2`

	run, err := scanRun(q.QueryRow(ctx, query, id, scope.TenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Run{}, payroll.ErrRunNotFound
		}
		return payroll.Run{}, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

func (r *runRepository) List(ctx context.Context, scope tenant.Scope, filter payroll.RunFilter) ([]payroll.Run, int64, error) {
	q := GetQuerier(ctx, r.db)

	where := `WHERE tenant_id = $1`
	args := []interface{}{scope.TenantID}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM payroll_runs `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM payroll_runs %s ORDER BY period_end %s, id LIMIT $%d OFFSET $%d`,
		runColumns, where, order, len(args)-1, len(args))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	runs := []payroll.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// UpdateStatus is a compare-and-set on status; the row is only touched when
// it is still in from.
func (r *runRepository) UpdateStatus(ctx context.Context, scope tenant.Scope, id string, from, to payroll.Status) (payroll.Run, error) {
	if !from.CanTransitionTo(to) {
		return payroll.Run{}, fmt.Errorf("%w: %s -> %s", payroll.ErrInvalidTransition, from, to)
	}
	if !validID(id) {
		return payroll.Run{}, payroll.ErrRunNotFound
	}
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_runs SET
			status = $4,
			computed_at = CASE WHEN $4 = 'computed' THEN NOW() ELSE computed_at END,
			finalized_at = CASE WHEN $4 = 'finalized' THEN NOW() ELSE finalized_at END,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = $3
		RETURNING ` + runColumns

	run, err := scanRun(q.QueryRow(ctx, query, id, scope.TenantID, from, to))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.Run{}, fmt.Errorf("failed to update payroll run status: %w", err)
	}

	// Nothing matched: either the run is gone or another writer moved it.
	current, err := r.GetByID(ctx, scope, id)
	if err != nil {
		return payroll.Run{}, err
	}
	return payroll.Run{}, fmt.Errorf("%w: run %s is %s, expected %s", payroll.ErrInvalidTransition, id, current.Status, from)
}

func (r *runRepository) SetFailures(ctx context.Context, scope tenant.Scope, id string, failures []payroll.EmployeeFailure) error {
	if !validID(id) {
		return payroll.ErrRunNotFound
	}
	q := GetQuerier(ctx, r.db)

	data, err := json.Marshal(nonNilFailures(failures))
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `UPDATE payroll_runs SET failed_employees = $3, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`,
		id, scope.TenantID, data)
	if err != nil {
		return fmt.Errorf("failed to set payroll run failures: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrRunNotFound
	}
	return nil
}

func (r *runRepository) ListStale(ctx context.Context, statuses []payroll.Status, updatedBefore time.Time, limit int) ([]payroll.Run, error) {
	q := GetQuerier(ctx, r.db)

	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	query := `SELECT ` + runColumns + ` FROM payroll_runs
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`

	rows, err := q.Query(ctx, query, names, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nonNilFailures(f []payroll.EmployeeFailure) []payroll.EmployeeFailure {
	if f == nil {
		return []payroll.EmployeeFailure{}
	}
	return f
}
