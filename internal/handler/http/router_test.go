package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-engine-go/internal/repository/memory"
	authService "github.com/cmlabs-hris/payroll-engine-go/internal/service/auth"
	employeeService "github.com/cmlabs-hris/payroll-engine-go/internal/service/employee"
	payrollService "github.com/cmlabs-hris/payroll-engine-go/internal/service/payroll"
	statutorySvc "github.com/cmlabs-hris/payroll-engine-go/internal/service/statutory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	handlerTestSecret = "test-secret-key-for-jwt"
	pushToken         = "push-secret"
)

type queuedJobs struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (q *queuedJobs) Dispatch(_ context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queuedJobs) last() queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[len(q.jobs)-1]
}

type testServer struct {
	server *httptest.Server
	apiKey string
	jobs   *queuedJobs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	tenantRepo := memory.NewTenantRepository(store)
	jwtService := jwt.NewJWTService(handlerTestSecret, time.Hour)
	authSvc := authService.NewAuthService(tenantRepo, jwtService)

	created, err := authSvc.CreateTenant(context.Background(), auth.CreateTenantRequest{Name: "Acme"})
	require.NoError(t, err)

	source, err := statutorySvc.NewFileSource("../../../configs/statutory")
	require.NoError(t, err)

	employeeRepo := memory.NewEmployeeRepository(store)
	jobs := &queuedJobs{}
	hub := sse.NewHub()
	registry := metrics.NewRegistry()

	payrollSvc := payrollService.NewPayrollService(
		memory.NewTransactor(store),
		memory.NewRunRepository(store),
		memory.NewLineItemRepository(store),
		memory.NewResultRepository(store),
		employeeRepo,
		source,
		lock.NewLocalLocker(),
		jobs,
		hub,
		payrollService.Options{Workers: 2, Metrics: metrics.NewPayroll(registry)},
	)

	router := NewRouter(RouterConfig{AllowedOrigins: []string{"*"}}, jwtService, Handlers{
		Auth:     NewAuthHandler(authSvc),
		Employee: NewEmployeeHandler(employeeService.NewEmployeeService(employeeRepo)),
		Payroll:  NewPayrollHandler(payrollSvc, jobs),
		Events:   NewEventsHandler(authSvc, jwtService, hub),
		PubSub:   NewPubSubHandler(payrollSvc, pushToken),
		Metrics:  registry.Handler(),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, apiKey: created.APIKey, jobs: jobs}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/v1/auth/token", nil)
	require.NoError(t, err)
	req.Header.Set(APIKeyHeader, s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data auth.TokenResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Bearer", body.Data.TokenType)
	return body.Data.AccessToken
}

func (s *testServer) push(t *testing.T, job queue.Job, token string) int {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)

	var envelope queue.PushEnvelope
	envelope.Message.Data = data
	envelope.Message.ID = "msg-1"
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	resp, err := http.Post(s.server.URL+"/internal/pubsub/compute?token="+token, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func runRequest() map[string]interface{} {
	return map[string]interface{}{
		"period_start": "2024-01-01",
		"period_end":   "2024-01-15",
		"payout_date":  "2024-01-20",
		"employees": []map[string]interface{}{
			{"external_employee_id": "E-1", "items": []map[string]interface{}{
				{"description": "Basic pay", "amount": "13500.00", "category": "basic"},
				{"description": "Cash advance", "amount": "500.00", "category": "deduction"},
			}},
			{"external_employee_id": "E-404", "items": []map[string]interface{}{
				{"description": "Basic pay", "amount": "9000.00", "category": "basic"},
			}},
		},
	}
}

func TestIssueToken(t *testing.T) {
	s := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, s.server.URL+"/api/v1/auth/token", nil)
	req.Header.Set(APIKeyHeader, "unknown.secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/auth/token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.NotEmpty(t, s.token(t))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/payroll/runs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/payroll/runs", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// An event stream token is not an access token.
	resp, body := s.do(t, http.MethodGet, "/api/v1/payroll/events/token", s.token(t), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sseToken := body["data"].(map[string]interface{})["token"].(string)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/payroll/runs", sseToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPayrollFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/employees/sync", token, map[string]interface{}{
		"external_id": "E-1", "first_name": "Juan", "last_name": "Cruz", "monthly_rate": "27000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodPost, "/api/v1/payroll/runs", token, runRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	run := data["run"].(map[string]interface{})
	runID := run["id"].(string)
	assert.Equal(t, "draft", run["status"])
	assert.Equal(t, []interface{}{"E-404"}, data["skipped_employees"])

	// Results are hidden until the pass completes.
	resp, _ = s.do(t, http.MethodGet, "/api/v1/payroll/runs/"+runID+"/results", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	assert.Equal(t, http.StatusNoContent, s.push(t, s.jobs.last(), pushToken))
	// Redelivery of the same job is acknowledged.
	assert.Equal(t, http.StatusNoContent, s.push(t, s.jobs.last(), pushToken))

	resp, body = s.do(t, http.MethodGet, "/api/v1/payroll/runs/"+runID+"/summary", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := body["data"].(map[string]interface{})
	assert.Equal(t, "computed", summary["status"])
	assert.Equal(t, "13500.00", summary["total_gross_income"])
	assert.Equal(t, "12022.50", summary["total_net_pay"])

	resp, _ = s.do(t, http.MethodPost, "/api/v1/payroll/runs/"+runID+"/compute", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, s.server.URL+"/api/v1/payroll/runs/"+runID+"/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	exportResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	exportResp.Body.Close()
	assert.Equal(t, http.StatusOK, exportResp.StatusCode)
	assert.Contains(t, exportResp.Header.Get("Content-Disposition"), "payroll-2024-01-15-")

	resp, body = s.do(t, http.MethodPost, "/api/v1/payroll/runs/"+runID+"/finalize", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "finalized", body["data"].(map[string]interface{})["status"])

	resp, body = s.do(t, http.MethodGet, "/api/v1/payroll/runs?status=finalized", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)
	assert.EqualValues(t, 1, body["meta"].(map[string]interface{})["total_items"])
}

func TestCreateRun_ValidationRejectsBatch(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	req := runRequest()
	req["period_end"] = "2023-12-31"
	resp, body := s.do(t, http.MethodPost, "/api/v1/payroll/runs", token, req)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
	assert.Contains(t, details, "period_end")

	resp, body = s.do(t, http.MethodGet, "/api/v1/payroll/runs", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["data"])
}

func TestCompute_QueuesJob(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	_, body := s.do(t, http.MethodPost, "/api/v1/payroll/runs", token, runRequest())
	runID := body["data"].(map[string]interface{})["run"].(map[string]interface{})["id"].(string)

	resp, _ := s.do(t, http.MethodPost, "/api/v1/payroll/runs/"+runID+"/compute", token, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, runID, s.jobs.last().RunID)

	resp, _ = s.do(t, http.MethodPost, "/api/v1/payroll/runs/does-not-exist/compute", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPubSubPush(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	_, body := s.do(t, http.MethodPost, "/api/v1/payroll/runs", token, runRequest())
	require.NotNil(t, body["data"])

	assert.Equal(t, http.StatusUnauthorized, s.push(t, s.jobs.last(), "wrong"))

	// Unknown runs are terminal and acknowledged.
	job := queue.Job{ID: "job-x", TenantID: s.jobs.last().TenantID, RunID: "missing"}
	assert.Equal(t, http.StatusNoContent, s.push(t, job, pushToken))

	resp, err := http.Post(s.server.URL+"/internal/pubsub/compute?token="+pushToken, "application/json", bytes.NewReader([]byte(`{"message":{}}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestEventsStream_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/api/v1/payroll/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/api/v1/payroll/events?token=bogus", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/api/v1/payroll/events/token", s.token(t), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["data"].(map[string]interface{})["token"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t)

	s.do(t, http.MethodPost, "/api/v1/payroll/runs", token, runRequest())
	require.Equal(t, http.StatusNoContent, s.push(t, s.jobs.last(), pushToken))

	resp, err := http.Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), `payroll_compute_passes_total{outcome="computed"} 1`)
}
