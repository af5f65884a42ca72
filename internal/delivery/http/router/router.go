package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/jobscraper-service/internal/delivery/http/handler"
	"github.com/user/jobscraper-service/internal/delivery/http/middleware"
	"go.uber.org/zap"
)

func New(h *handler.Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", h.HandleStartRun)
		r.Get("/current", h.HandleCurrentRun)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", h.HandleGetRun)
			r.Get("/jobs", h.HandleListJobs)
			r.Get("/export.csv", h.HandleExportCSV)
			r.Get("/analysis", h.HandleAnalysis)
			r.Post("/stop", h.HandleStopRun)
			r.Post("/verification", h.HandleClearVerification)
		})
	})

	return r
}
