package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/api/handlers"
	mw "github.com/Harshitk-cp/hyperholmes/internal/api/middleware"
	"github.com/Harshitk-cp/hyperholmes/internal/buildconfig"
	"github.com/Harshitk-cp/hyperholmes/internal/config"
	"github.com/Harshitk-cp/hyperholmes/internal/metrics"
	"github.com/Harshitk-cp/hyperholmes/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Registry     *service.CaseRegistry
	Persister    *service.Persister
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
	stop         chan struct{}
}

func NewApp(registry *service.CaseRegistry, logger *zap.Logger) *App {
	persister := service.NewPersister(registry, logger)
	persister.SetInterval(config.PersistInterval())

	caseHandler := handlers.NewCaseHandler(registry, logger)
	analysisHandler := handlers.NewAnalysisHandler(registry, config.ExportDir(), logger)

	r := chi.NewRouter()
	app := &App{
		Router:    r,
		Registry:  registry,
		Persister: persister,
		startTime: time.Now(),
		stop:      make(chan struct{}),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Order matters: request ids must exist before logging reads them.
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst(), app.stop))

	r.Get("/health", app.healthHandler())
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, buildconfig.VersionInfo())
	})
	r.Get("/metrics", app.metricsHandler())
	r.Method(http.MethodGet, "/metrics/prometheus", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", caseHandler.List)
			r.Post("/", caseHandler.Create)

			r.Route("/{caseID}", func(r chi.Router) {
				r.Delete("/", caseHandler.Close)
				r.Post("/import", caseHandler.Import)

				r.Post("/entities", caseHandler.AddEntity())
				r.Get("/entities", caseHandler.ListEntities())
				r.Post("/events", caseHandler.AddEvent())
				r.Get("/events", caseHandler.ListEvents())
				r.Post("/relationships", caseHandler.AddRelationship())
				r.Get("/relationships", caseHandler.ListRelationships())
				r.Post("/evidence", caseHandler.AddEvidence())
				r.Get("/evidence", caseHandler.ListEvidence())
				r.Get("/atoms/{atomID}", caseHandler.GetAtom)
				r.Get("/atoms/{atomID}/similar", analysisHandler.Similar)

				r.Post("/query", caseHandler.Query)

				r.Post("/inference", analysisHandler.RunInference)
				r.Get("/rules", analysisHandler.ListRules)
				r.Post("/rules", analysisHandler.LoadRules)
				r.Get("/patterns", analysisHandler.DetectPatterns)
				r.Post("/hypotheses", analysisHandler.GenerateHypotheses)
				r.Post("/train", analysisHandler.Train)
				r.Get("/leads", analysisHandler.Leads)
				r.Post("/analysis", analysisHandler.RunAnalysis)
				r.Post("/reason", analysisHandler.Reason)

				r.Get("/export", analysisHandler.Export)
				r.Post("/export", analysisHandler.ExportToFile)
				r.Post("/snapshot", analysisHandler.Persist)
				r.Get("/search", analysisHandler.Search)
				r.Get("/status", analysisHandler.Status)
			})
		})
	})

	return app
}

// Start launches background services.
func (app *App) Start() {
	app.Persister.Start()
}

// Stop halts background services, flushing open cases to the store.
func (app *App) Stop() {
	close(app.stop)
	app.Persister.Stop()
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if st := app.Registry.Store(); st != nil {
			if _, err := st.ListCases(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		writeJSON(w, http.StatusOK, map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"open_cases":     len(app.Registry.List()),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
