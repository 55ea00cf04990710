package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/outreach/{kind}", func(r chi.Router) {
			r.Get("/status", h.GetOutreachStatus)
			r.Post("/run", h.TriggerRun)
			r.Post("/schedule", h.ScheduleRun)
			r.Post("/auto", h.UpdateAutomation)
		})

		r.Route("/runs/{id}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Get("/export", h.ExportRun)
		})

		r.Route("/sweep", func(r chi.Router) {
			r.Post("/start", h.StartSweep)
			r.Post("/pause", h.PauseSweep)
			r.Post("/stop", h.StopSweep)
			r.Post("/process", h.ProcessSweep)
			r.Get("/status", h.GetSweepStatus)
			r.Get("/history", h.GetSweepHistory)
		})

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", h.SearchSuppressions)
			r.Post("/", h.AddSuppression)
			r.Post("/import", h.ImportSuppressions)
			r.Post("/unsuppress", h.Unsuppress)
			r.Get("/export", h.ExportSuppressions)
		})
	})

	return r
}
