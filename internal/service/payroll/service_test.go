package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/statutory"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/tenant"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/validator"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/memory"
	statutorySvc "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var (
	tenantA = tenant.Scope{TenantID: "tenant-a"}
	tenantB = tenant.Scope{TenantID: "tenant-b"}
)

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job queue.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

type recordingEvents struct {
	mu     sync.Mutex
	events []sse.Event
}

func (e *recordingEvents) Publish(event sse.Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return 1
}

func (e *recordingEvents) statuses() []payroll.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []payroll.Status
	for _, ev := range e.events {
		out = append(out, ev.Data.(map[string]interface{})["status"].(payroll.Status))
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) ComputePass(outcome string, _, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

type sourceFunc func(ctx context.Context, effective time.Time) (statutory.RuleSet, error)

func (f sourceFunc) RuleSet(ctx context.Context, effective time.Time) (statutory.RuleSet, error) {
	return f(ctx, effective)
}

// failingResults fails the upsert for one employee.
type failingResults struct {
	payroll.ResultRepository
	employeeID string
}

func (r failingResults) Upsert(ctx context.Context, result payroll.Result) (payroll.Result, error) {
	if result.EmployeeID == r.employeeID {
		return payroll.Result{}, errors.New("connection reset")
	}
	return r.ResultRepository.Upsert(ctx, result)
}

type harness struct {
	store      *memory.Store
	runs       *memory.RunRepository
	items      *memory.LineItemRepository
	results    payroll.ResultRepository
	employees  *memory.EmployeeRepository
	source     statutory.Source
	locker     *lock.LocalLocker
	dispatcher *recordingDispatcher
	events     *recordingEvents
	metrics    *recordingMetrics
	archive    storage.FileStorage
	svc        payroll.Service
	ids        map[string]string // external id -> employee id
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	source, err := statutorySvc.NewFileSource("../../../configs/statutory")
	require.NoError(t, err)

	store := memory.NewStore()
	h := &harness{
		store:      store,
		runs:       memory.NewRunRepository(store),
		items:      memory.NewLineItemRepository(store),
		results:    memory.NewResultRepository(store),
		employees:  memory.NewEmployeeRepository(store),
		source:     source,
		locker:     lock.NewLocalLocker(),
		dispatcher: &recordingDispatcher{},
		events:     &recordingEvents{},
		metrics:    &recordingMetrics{},
		ids:        make(map[string]string),
	}
	h.build()

	for _, scope := range []tenant.Scope{tenantA, tenantB} {
		for _, ext := range []string{"E-1", "E-2", "E-3"} {
			emp, err := h.employees.Upsert(context.Background(), employee.Employee{
				TenantID:   scope.TenantID,
				ExternalID: ext,
				FirstName:  "Employee",
				LastName:   ext,
			})
			require.NoError(t, err)
			h.ids[scope.TenantID+"/"+ext] = emp.ID
		}
	}
	return h
}

func (h *harness) build() {
	h.svc = NewPayrollService(
		memory.NewTransactor(h.store),
		h.runs, h.items, h.results, h.employees,
		h.source, h.locker, h.dispatcher, h.events,
		Options{Workers: 2, LockTTL: time.Minute, Archive: h.archive, Metrics: h.metrics},
	)
}

func lineItem(description, amount, category string) payroll.LineItemInput {
	d := decimal.RequireFromString(amount)
	return payroll.LineItemInput{Description: description, Amount: &d, Category: category}
}

func standardRequest() payroll.CreateRunRequest {
	return payroll.CreateRunRequest{
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-01-15",
		PayoutDate:  "2024-01-20",
		Employees: []payroll.EmployeeItemsInput{
			{ExternalEmployeeID: "E-1", Items: []payroll.LineItemInput{
				lineItem("Basic pay", "13500.00", "basic"),
				lineItem("Cash advance", "500.00", "deduction"),
			}},
			{ExternalEmployeeID: "E-2", Items: []payroll.LineItemInput{
				lineItem("Basic pay", "25000.00", "basic"),
				lineItem("Rice subsidy", "1000.00", "allowance_non_taxable"),
			}},
			{ExternalEmployeeID: "E-404", Items: []payroll.LineItemInput{
				lineItem("Basic pay", "9000.00", "basic"),
			}},
		},
	}
}

func (h *harness) createRun(t *testing.T, scope tenant.Scope, req payroll.CreateRunRequest) string {
	t.Helper()
	resp, err := h.svc.CreateRun(context.Background(), scope, req)
	require.NoError(t, err)
	return resp.Run.ID
}

func TestCreateRun(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.CreateRun(context.Background(), tenantA, standardRequest())
	require.NoError(t, err)

	assert.Equal(t, payroll.StatusDraft, resp.Run.Status)
	assert.Equal(t, "2024-01-15", resp.Run.PeriodEnd)
	assert.Equal(t, 4, resp.ItemCount)
	assert.Equal(t, []string{"E-404"}, resp.SkippedEmployees)

	items, err := h.items.ListByRun(context.Background(), tenantA, resp.Run.ID)
	require.NoError(t, err)
	assert.Len(t, items, 4)
	for _, it := range items {
		assert.Equal(t, resp.Run.ID, it.RunID)
		assert.Equal(t, tenantA.TenantID, it.TenantID)
	}

	require.Len(t, h.dispatcher.jobs, 1)
	assert.Equal(t, queue.Job{TenantID: tenantA.TenantID, RunID: resp.Run.ID}, h.dispatcher.jobs[0])
}

func TestCreateRun_RejectsWholeBatchOnBadItem(t *testing.T) {
	h := newHarness(t)
	req := standardRequest()
	req.Employees[1].Items[0] = lineItem("Basic pay", "-1", "basic")
	req.Employees[0].Items[1].Category = "bonus"

	_, err := h.svc.CreateRun(context.Background(), tenantA, req)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := verrs.ToMap()
	assert.Contains(t, fields, "employees[1].items[0].amount")
	assert.Contains(t, fields, "employees[0].items[1].category")

	list, err := h.svc.ListRuns(context.Background(), tenantA, payroll.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Data)
	assert.Empty(t, h.dispatcher.jobs)
}

func TestCreateRun_RejectsUnquantizedAndMissingAmounts(t *testing.T) {
	h := newHarness(t)
	req := standardRequest()
	req.Employees[0].Items[0] = lineItem("Basic pay", "11000.005", "basic")
	req.Employees[1].Items[1].Amount = nil

	_, err := h.svc.CreateRun(context.Background(), tenantA, req)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	fields := verrs.ToMap()
	assert.Contains(t, fields, "employees[0].items[0].amount")
	assert.Contains(t, fields, "employees[1].items[1].amount")

	list, err := h.svc.ListRuns(context.Background(), tenantA, payroll.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Data)
}

func TestCreateRun_RejectsInvertedPeriod(t *testing.T) {
	h := newHarness(t)
	req := standardRequest()
	req.PeriodEnd = "2023-12-31"

	_, err := h.svc.CreateRun(context.Background(), tenantA, req)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
}

func TestCreateRun_DispatchFailureKeepsRun(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.err = errors.New("queue down")

	runID := h.createRun(t, tenantA, standardRequest())

	run, err := h.svc.GetRun(context.Background(), tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusDraft, run.Status)
}

func TestCompute_ProducesResults(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	run, err := h.svc.GetRun(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusComputed, run.Status)
	assert.NotNil(t, run.ComputedAt)
	assert.Empty(t, run.FailedEmployees)

	results, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byExternal := map[string]payroll.ResultResponse{}
	for _, r := range results {
		require.NotNil(t, r.EmployeeExternalID)
		byExternal[*r.EmployeeExternalID] = r
	}

	e1 := byExternal["E-1"]
	assert.Equal(t, "13500.00", e1.GrossIncome.String())
	assert.Equal(t, "977.50", e1.TotalStatutory.String())
	assert.Equal(t, "0.00", e1.WithholdingTax.String())
	assert.Equal(t, "1477.50", e1.TotalDeductions.String())
	assert.Equal(t, "12022.50", e1.NetPay.String())

	e2 := byExternal["E-2"]
	assert.Equal(t, "25000.00", e2.GrossIncome.String())
	assert.Equal(t, "1125.00", e2.SSS.String())
	assert.Equal(t, "500.00", e2.PhilHealth.String())
	assert.Equal(t, "100.00", e2.PagIBIG.String())
	assert.Equal(t, "23275.00", e2.TaxableIncome.String())
	assert.Equal(t, "488.40", e2.WithholdingTax.String())
	assert.Equal(t, "1000.00", e2.NonTaxableAllowances.String())
	assert.Equal(t, "22786.60", e2.NetPay.String())

	assert.Equal(t, []payroll.Status{payroll.StatusDraft, payroll.StatusComputing, payroll.StatusComputed}, h.events.statuses())
}

func TestCompute_SecondPassIsRejectedAndResultsUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())
	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	before, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)

	err = h.svc.Compute(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrDuplicateComputation)

	after, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCompute_ConcurrentPassesComputeOnce(t *testing.T) {
	h := newHarness(t)
	runID := h.createRun(t, tenantA, standardRequest())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.svc.Compute(context.Background(), tenantA, runID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, payroll.ErrRunLocked) || errors.Is(err, payroll.ErrDuplicateComputation), err)
	}
	assert.Equal(t, 1, succeeded)

	results, err := h.svc.ListResults(context.Background(), tenantA, runID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCompute_LockedRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	held, err := h.locker.Obtain(ctx, lockKey(tenantA, runID), time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)

	err = h.svc.Compute(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrRunLocked)
	assert.False(t, IsTerminal(err))

	run, err := h.svc.GetRun(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusDraft, run.Status)
}

func TestCompute_EmptyBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := standardRequest()
	req.Employees = nil
	runID := h.createRun(t, tenantA, req)

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	results, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Empty(t, results)

	sum, err := h.svc.Summary(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusComputed, sum.Status)
	assert.Zero(t, sum.EmployeeCount)
	assert.Equal(t, "0.00", sum.TotalNetPay.String())
}

func TestCompute_RunNotFoundIsNoOp(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.svc.Compute(context.Background(), tenantA, "missing"))
}

func TestCompute_TenantIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	// Another tenant's scope cannot see, compute or read the run.
	require.NoError(t, h.svc.Compute(ctx, tenantB, runID))
	run, err := h.svc.GetRun(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusDraft, run.Status)

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))
	_, err = h.svc.ListResults(ctx, tenantB, runID)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
	_, err = h.svc.Finalize(ctx, tenantB, runID)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)

	assert.ErrorIs(t, h.svc.Compute(ctx, tenant.Scope{}, runID), tenant.ErrMissingScope)
}

func TestCompute_ConfigurationErrorLeavesRunDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.source = sourceFunc(func(context.Context, time.Time) (statutory.RuleSet, error) {
		return statutory.RuleSet{}, &statutory.TableError{Scheme: statutory.SchemeWithholdingTax, Reason: "no table in force"}
	})
	h.build()
	runID := h.createRun(t, tenantA, standardRequest())

	err := h.svc.Compute(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrConfiguration)
	assert.True(t, IsTerminal(err))

	run, err := h.svc.GetRun(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusDraft, run.Status)

	_, err = h.svc.ListResults(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrRunNotComputed)
}

func TestCompute_RulesResolvedByPeriodEnd(t *testing.T) {
	h := newHarness(t)
	var got time.Time
	fileSource := h.source
	h.source = sourceFunc(func(ctx context.Context, effective time.Time) (statutory.RuleSet, error) {
		got = effective
		return fileSource.RuleSet(ctx, effective)
	})
	h.build()
	runID := h.createRun(t, tenantA, standardRequest())

	require.NoError(t, h.svc.Compute(context.Background(), tenantA, runID))
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)
}

func TestCompute_IsolatesEmployeeWithBadItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	// Items that bypassed ingestion validation.
	require.NoError(t, h.items.CreateBatch(ctx, []payroll.LineItem{{
		RunID:      runID,
		TenantID:   tenantA.TenantID,
		EmployeeID: h.ids["tenant-a/E-3"],
		Amount:     decimal.NewFromInt(100),
		Category:   "bonus",
	}}))

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	run, err := h.svc.GetRun(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusComputed, run.Status)
	require.Len(t, run.FailedEmployees, 1)
	assert.Equal(t, h.ids["tenant-a/E-3"], run.FailedEmployees[0].EmployeeID)

	results, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCompute_InterruptedPassResumes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	healthy := h.results
	h.results = failingResults{ResultRepository: healthy, employeeID: h.ids["tenant-a/E-2"]}
	h.build()

	err := h.svc.Compute(ctx, tenantA, runID)
	require.Error(t, err)
	assert.False(t, IsTerminal(err))

	run, err := h.svc.GetRun(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusComputing, run.Status)
	_, err = h.svc.ListResults(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrRunNotComputed)

	h.results = healthy
	h.build()
	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	results, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFinalize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	_, err := h.svc.Finalize(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	run, err := h.svc.Finalize(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusFinalized, run.Status)
	assert.NotNil(t, run.FinalizedAt)

	_, err = h.svc.Finalize(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrInvalidTransition)
	assert.ErrorIs(t, h.svc.Compute(ctx, tenantA, runID), payroll.ErrDuplicateComputation)

	results, err := h.svc.ListResults(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestListRuns(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for month := 1; month <= 3; month++ {
		req := standardRequest()
		req.PeriodStart = fmt.Sprintf("2024-%02d-01", month)
		req.PeriodEnd = fmt.Sprintf("2024-%02d-15", month)
		req.PayoutDate = fmt.Sprintf("2024-%02d-20", month)
		h.createRun(t, tenantA, req)
	}

	list, err := h.svc.ListRuns(ctx, tenantA, payroll.RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.TotalCount)
	require.Len(t, list.Data, 2)
	assert.Equal(t, "2024-03-15", list.Data[0].PeriodEnd)

	status := "finalized"
	list, err = h.svc.ListRuns(ctx, tenantA, payroll.RunFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, list.Data)

	bad := "paid"
	_, err = h.svc.ListRuns(ctx, tenantA, payroll.RunFilter{Status: &bad})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestSummaryAndExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	_, err := h.svc.Export(ctx, tenantA, runID)
	assert.ErrorIs(t, err, payroll.ErrRunNotComputed)

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))

	sum, err := h.svc.Summary(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.EmployeeCount)
	assert.Equal(t, "38500.00", sum.TotalGrossIncome.String())
	assert.Equal(t, "34809.10", sum.TotalNetPay.String())

	export, err := h.svc.Export(ctx, tenantA, runID)
	require.NoError(t, err)
	assert.Equal(t, exportContentType, export.ContentType)
	assert.Contains(t, export.FileName, "2024-01-15")

	f, err := excelize.OpenReader(bytes.NewReader(export.Content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "TOTAL", rows[3][0])
	assert.Equal(t, "34809.10", rows[3][len(exportHeaders)-1])
}

func TestHandleJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())
	job := queue.Job{TenantID: tenantA.TenantID, RunID: runID}

	require.NoError(t, HandleJob(ctx, h.svc, job))
	// Redelivery of a completed job is acknowledged.
	require.NoError(t, HandleJob(ctx, h.svc, job))
	require.NoError(t, HandleJob(ctx, h.svc, queue.Job{TenantID: tenantA.TenantID, RunID: "missing"}))

	other := h.createRun(t, tenantA, standardRequest())
	held, err := h.locker.Obtain(ctx, lockKey(tenantA, other), time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)
	assert.ErrorIs(t, HandleJob(ctx, h.svc, queue.Job{TenantID: tenantA.TenantID, RunID: other}), payroll.ErrRunLocked)
}

func TestFinalize_ArchivesWorkbook(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	h.archive = archive
	h.build()

	runID := h.createRun(t, tenantA, standardRequest())
	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))
	_, err = h.svc.Finalize(ctx, tenantA, runID)
	require.NoError(t, err)

	run, err := h.runs.GetByID(ctx, tenantA, runID)
	require.NoError(t, err)
	ok, err := archive.Exists(ctx, archivePath(run))
	require.NoError(t, err)
	assert.True(t, ok)

	export, err := h.svc.Export(ctx, tenantA, runID)
	require.NoError(t, err)
	r, err := archive.Download(ctx, archivePath(run))
	require.NoError(t, err)
	defer r.Close()
	var stored bytes.Buffer
	_, err = stored.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, stored.Bytes(), export.Content)
}

func TestCompute_RecordsOutcomes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	runID := h.createRun(t, tenantA, standardRequest())

	require.NoError(t, h.svc.Compute(ctx, tenantA, runID))
	_ = h.svc.Compute(ctx, tenantA, runID)
	require.NoError(t, h.svc.Compute(ctx, tenantA, "missing"))

	assert.Equal(t, []string{OutcomeComputed, OutcomeDuplicate, OutcomeNotFound}, h.metrics.outcomes)
}
