package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/cmlabs-hris/payroll-engine-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-engine-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

type RouterConfig struct {
	AppName        string
	Version        string
	Env            string
	AllowedOrigins []string
	// LogRequests turns the access log off in tests.
	LogRequests bool
}

type Handlers struct {
	Auth     AuthHandler
	Employee EmployeeHandler
	Payroll  PayrollHandler
	Events   EventsHandler
	PubSub   PubSubHandler
	Metrics  http.Handler
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", APIKeyHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		MaxAge:           300,
	}))

	if cfg.LogRequests {
		logFormat := httplog.SchemaECS.Concise(cfg.Env != "production")
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			ReplaceAttr: logFormat.ReplaceAttr,
		})).With(
			slog.String("app", cfg.AppName),
			slog.String("version", cfg.Version),
			slog.String("env", cfg.Env),
		)
		r.Use(httplog.RequestLogger(logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	if h.PubSub != nil {
		r.Post("/internal/pubsub/compute", h.PubSub.Compute)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Post("/auth/token", h.Auth.IssueToken)

		// The SSE stream authenticates with its own short-lived token.
		r.Get("/payroll/events", h.Events.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.TenantAuth(JWTService.JWTAuth()))

			r.Route("/employees", func(r chi.Router) {
				r.Post("/sync", h.Employee.Sync)
				r.Get("/", h.Employee.List)
				r.Get("/{id}", h.Employee.GetByID)
			})

			r.Route("/payroll", func(r chi.Router) {
				r.Get("/events/token", h.Events.IssueToken)

				r.Route("/runs", func(r chi.Router) {
					r.Post("/", h.Payroll.CreateRun)
					r.Get("/", h.Payroll.ListRuns)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Payroll.GetRun)
						r.Post("/compute", h.Payroll.Compute)
						r.Post("/finalize", h.Payroll.Finalize)
						r.Get("/results", h.Payroll.ListResults)
						r.Get("/summary", h.Payroll.Summary)
						r.Get("/export", h.Payroll.Export)
					})
				})
			})
		})
	})
	return r
}
