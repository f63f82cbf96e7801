package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/money"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tenantA = tenant.Scope{TenantID: "tenant-a"}
	tenantB = tenant.Scope{TenantID: "tenant-b"}
)

func TestTransactor_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	runs := NewRunRepository(store)
	tx := NewTransactor(store)

	boom := errors.New("boom")
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		_, err := runs.Create(ctx, payroll.Run{ID: "run-1", TenantID: tenantA.TenantID, Status: payroll.StatusDraft})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = runs.GetByID(ctx, tenantA, "run-1")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestTransactor_RollbackKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	runs := NewRunRepository(store)
	tx := NewTransactor(store)

	boom := errors.New("boom")
	started := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if _, err := runs.Create(ctx, payroll.Run{ID: "run-1", TenantID: tenantA.TenantID, Status: payroll.StatusDraft}); err != nil {
				return err
			}
			close(started)
			<-release
			return boom
		})
	}()
	<-started

	written := make(chan error, 1)
	go func() {
		_, err := runs.Create(ctx, payroll.Run{ID: "run-2", TenantID: tenantA.TenantID, Status: payroll.StatusDraft})
		written <- err
	}()

	select {
	case err := <-written:
		t.Fatalf("write outside the transaction finished while it was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	assert.ErrorIs(t, <-txDone, boom)
	require.NoError(t, <-written)

	_, err := runs.GetByID(ctx, tenantA, "run-1")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
	_, err = runs.GetByID(ctx, tenantA, "run-2")
	assert.NoError(t, err)
}

func TestTransactor_NestedCallJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	runs := NewRunRepository(store)
	tx := NewTransactor(store)

	boom := errors.New("boom")
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, tx.WithinTransaction(ctx, func(ctx context.Context) error {
			_, err := runs.Create(ctx, payroll.Run{ID: "run-1", TenantID: tenantA.TenantID, Status: payroll.StatusDraft})
			return err
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = runs.GetByID(ctx, tenantA, "run-1")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestRunRepository_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(NewStore())
	_, err := runs.Create(ctx, payroll.Run{ID: "run-1", TenantID: tenantA.TenantID, Status: payroll.StatusDraft})
	require.NoError(t, err)

	run, err := runs.UpdateStatus(ctx, tenantA, "run-1", payroll.StatusDraft, payroll.StatusComputing)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusComputing, run.Status)

	_, err = runs.UpdateStatus(ctx, tenantA, "run-1", payroll.StatusDraft, payroll.StatusComputing)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)

	_, err = runs.UpdateStatus(ctx, tenantA, "run-1", payroll.StatusComputing, payroll.StatusFinalized)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)

	run, err = runs.UpdateStatus(ctx, tenantA, "run-1", payroll.StatusComputing, payroll.StatusComputed)
	require.NoError(t, err)
	assert.NotNil(t, run.ComputedAt)
}

func TestRunRepository_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(NewStore())
	_, err := runs.Create(ctx, payroll.Run{ID: "run-1", TenantID: tenantA.TenantID, Status: payroll.StatusDraft})
	require.NoError(t, err)

	_, err = runs.GetByID(ctx, tenantB, "run-1")
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)

	_, err = runs.UpdateStatus(ctx, tenantB, "run-1", payroll.StatusDraft, payroll.StatusComputing)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)

	list, total, err := runs.List(ctx, tenantB, payroll.RunFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}

func TestRunRepository_ListStale(t *testing.T) {
	ctx := context.Background()
	runs := NewRunRepository(NewStore())
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(time.Hour)

	for _, run := range []payroll.Run{
		{ID: "draft-old", TenantID: "a", Status: payroll.StatusDraft, UpdatedAt: old},
		{ID: "computing-old", TenantID: "b", Status: payroll.StatusComputing, UpdatedAt: old},
		{ID: "computed-old", TenantID: "a", Status: payroll.StatusComputed, UpdatedAt: old},
		{ID: "draft-fresh", TenantID: "a", Status: payroll.StatusDraft, UpdatedAt: fresh},
	} {
		_, err := runs.Create(ctx, run)
		require.NoError(t, err)
	}

	stale, err := runs.ListStale(ctx, []payroll.Status{payroll.StatusDraft, payroll.StatusComputing}, old.Add(time.Minute), 10)
	require.NoError(t, err)

	var ids []string
	for _, run := range stale {
		ids = append(ids, run.ID)
	}
	assert.ElementsMatch(t, []string{"draft-old", "computing-old"}, ids)
}

func TestResultRepository_UpsertKeepsOneRowPerEmployee(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	results := NewResultRepository(store)

	first, err := results.Upsert(ctx, payroll.Result{RunID: "run-1", TenantID: tenantA.TenantID, EmployeeID: "emp-1", NetPay: money.MustParse("100.00")})
	require.NoError(t, err)
	second, err := results.Upsert(ctx, payroll.Result{RunID: "run-1", TenantID: tenantA.TenantID, EmployeeID: "emp-1", NetPay: money.MustParse("200.00")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := results.ListByRun(ctx, tenantA, "run-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "200.00", list[0].NetPay.String())

	list, err = results.ListByRun(ctx, tenantB, "run-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmployeeRepository_UpsertByExternalID(t *testing.T) {
	ctx := context.Background()
	employees := NewEmployeeRepository(NewStore())

	created, err := employees.Upsert(ctx, employee.Employee{TenantID: tenantA.TenantID, ExternalID: "E-1", FirstName: "Juan"})
	require.NoError(t, err)
	updated, err := employees.Upsert(ctx, employee.Employee{TenantID: tenantA.TenantID, ExternalID: "E-1", FirstName: "Juana"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	other, err := employees.Upsert(ctx, employee.Employee{TenantID: tenantB.TenantID, ExternalID: "E-1", FirstName: "Pedro"})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, other.ID)

	resolved, err := employees.ResolveExternalIDs(ctx, tenantA, []string{"E-1", "E-404"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"E-1": created.ID}, resolved)
}
