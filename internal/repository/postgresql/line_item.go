package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/jackc/pgx/v5"
)

type lineItemRepository struct {
	db *database.DB
}

func NewLineItemRepository(db *database.DB) payroll.LineItemRepository {
	return &lineItemRepository{db: db}
}

// CreateBatch streams the items with COPY.
func (r *lineItemRepository) CreateBatch(ctx context.Context, items []payroll.LineItem) error {
	q := GetQuerier(ctx, r.db)

	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = newID()
		}
		rows = append(rows, []interface{}{
			item.ID, item.RunID, item.TenantID, item.EmployeeID,
			item.Description, item.Amount, string(item.Category), item.CreatedAt,
		})
	}

	_, err := q.CopyFrom(ctx,
		pgx.Identifier{"payroll_line_items"},
		[]string{"id", "run_id", "tenant_id", "employee_id", "description", "amount", "category", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to batch create line items: %w", err)
	}
	return nil
}

func (r *lineItemRepository) ListByRun(ctx context.Context, scope tenant.Scope, runID string) ([]payroll.LineItem, error) {
	if !validID(runID) {
		return nil, nil
	}
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, run_id, tenant_id, employee_id, description, amount, category, created_at
		FROM payroll_line_items
		WHERE run_id = $1 AND tenant_id = $2
		ORDER BY employee_id, id
	`

	rows, err := q.Query(ctx, query, runID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []payroll.LineItem
	for rows.Next() {
		var item payroll.LineItem
		if err := rows.Scan(
			&item.ID, &item.RunID, &item.TenantID, &item.EmployeeID,
			&item.Description, &item.Amount, &item.Category, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
