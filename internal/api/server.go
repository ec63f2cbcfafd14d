package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/monitoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server. m may be nil, in which case neither
// request metrics nor /metrics are served.
func NewServer(cfg domain.ServerConfig, svc *monitoring.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, m *metrics.Metrics, version string) *Server {
	handler := NewHandler(svc, repo, cache, bus, m, version)
	router := chi.NewRouter()

	router.Use(CORSMiddleware)
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	if m != nil {
		router.Use(MetricsMiddleware(m))
	}
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if m != nil {
		router.Method(http.MethodGet, "/metrics", m.Handler())
	}

	router.Group(func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Threshold classification
		r.Post("/thresholds/classify", handler.Classify)
		r.Post("/thresholds/validate", handler.ValidateThresholds)
		r.Post("/thresholds/layout", handler.Layout)

		// Scorecards
		r.Get("/scorecard/ratings", handler.Ratings)
		r.Get("/scorecard/{validationId}", handler.GetScorecard)
		r.Put("/scorecard/{validationId}", handler.SaveScorecard)

		r.Route("/monitoring", func(r chi.Router) {
			// Plans
			r.Get("/plans", handler.ListPlans)
			r.Post("/plans", handler.CreatePlan)
			r.Get("/plans/{planId}", handler.GetPlan)
			r.Put("/plans/{planId}", handler.UpdatePlan)
			r.Delete("/plans/{planId}", handler.DeletePlan)

			// Metrics
			r.Get("/plans/{planId}/metrics", handler.ListMetrics)
			r.Post("/plans/{planId}/metrics", handler.AddMetric)
			r.Put("/metrics/{metricId}", handler.UpdateMetric)
			r.Put("/metrics/{metricId}/thresholds", handler.UpdateThresholds)
			r.Get("/metrics/{metricId}/trend", handler.Trend)

			// Versions
			r.Get("/plans/{planId}/versions", handler.ListVersions)
			r.Post("/plans/{planId}/versions", handler.PublishVersion)
			r.Get("/versions/{versionId}", handler.GetVersion)

			// Cycles
			r.Get("/plans/{planId}/cycles", handler.ListCycles)
			r.Post("/plans/{planId}/cycles", handler.CreateCycle)
			r.Get("/cycles/{cycleId}", handler.GetCycle)
			r.Get("/cycles/{cycleId}/results", handler.ListResults)
			r.Post("/cycles/{cycleId}/results", handler.RecordResult)
			r.Post("/cycles/{cycleId}/{action}", handler.TransitionCycle)

			// Exceptions
			r.Get("/plans/{planId}/exceptions", handler.ListExceptions)
			r.Post("/exceptions/{exceptionId}/close", handler.CloseException)
		})
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
