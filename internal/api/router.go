package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// RequestsPerMinute is the per-IP rate limit applied to every route.
const RequestsPerMinute = 120

// NewRouter builds and returns the Chi router with all routes configured.
func NewRouter(handlers *Handlers, prefsBackend Pinger, metrics http.Handler, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(RequestsPerMinute, time.Minute))

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandlerFunc(prefsBackend, log))
		r.Get("/state", handlers.GetState)
		r.Get("/events", handlers.Events)

		r.Route("/views", func(r chi.Router) {
			r.Get("/home", handlers.HomeView)
			r.Get("/forecast", handlers.ForecastView)
			r.Get("/history", handlers.HistoryView)
			r.Get("/overview", handlers.OverviewView)
			r.Get("/about", handlers.AboutView)
			r.Get("/settings", handlers.SettingsView)
		})

		r.Post("/search", handlers.Search)
		r.Post("/refresh", handlers.Refresh)
		r.Post("/geolocate", handlers.Geolocate)
		r.Post("/history/select", handlers.SelectHistory)
		r.Delete("/error", handlers.DismissError)
		r.Put("/preferences", handlers.UpdatePreferences)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
