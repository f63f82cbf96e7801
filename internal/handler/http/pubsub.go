package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/queue"
	payrollService "github.com/cmlabs-hris/payroll-engine-go/internal/service/payroll"
)

type PubSubHandler interface {
	Compute(w http.ResponseWriter, r *http.Request)
}

type pubSubHandlerImpl struct {
	payrollService payroll.Service
	verifyToken    string
}

// NewPubSubHandler serves the push subscription. When verifyToken is set the
// subscription URL must carry it as ?token=.
func NewPubSubHandler(payrollService payroll.Service, verifyToken string) PubSubHandler {
	return &pubSubHandlerImpl{payrollService: payrollService, verifyToken: verifyToken}
}

// Compute runs one pass for a pushed job. Pub/Sub redelivers on any non-2xx,
// so terminal outcomes answer 204 and only retryable ones answer 5xx.
func (h *pubSubHandlerImpl) Compute(w http.ResponseWriter, r *http.Request) {
	if h.verifyToken != "" {
		got := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.verifyToken)) != 1 {
			response.Unauthorized(w, "Invalid push token")
			return
		}
	}

	job, err := queue.DecodePush(r.Body)
	if err != nil {
		// Malformed messages would be redelivered forever; acknowledge them.
		slog.Error("Discarding malformed push message", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := payrollService.HandleJob(r.Context(), h.payrollService, job); err != nil {
		slog.Warn("Compute job will be redelivered", "job_id", job.ID, "run_id", job.RunID, "error", err)
		response.ServiceUnavailable(w, "RETRY", "Computation did not complete, retry later")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
