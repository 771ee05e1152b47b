package routes

import (
	"net/http"

	"fieldops/portal-sync/internal/api"
	"fieldops/portal-sync/internal/config"
	"fieldops/portal-sync/internal/logging"
	"fieldops/portal-sync/internal/metrics"
	"fieldops/portal-sync/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RegisterRoutes builds the HTTP surface. metricsHandler serves /metrics.
func RegisterRoutes(cfg *config.Config, handlers *api.Handlers, metricsReg *metrics.MetricsRegistry, metricsHandler http.Handler) http.Handler {

	// initialize Chi router
	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(middleware.InFlightMiddleware(metricsReg))
	r.Use(middleware.MetricsMiddleware(metricsReg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Actor"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	r.Get("/healthCheck", handlers.HealthCheckHandler())
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/realtime/{channel}", handlers.RealtimeHandler())

	ingressLimiter := middleware.NewIPRateLimiter(cfg.Webhook.IngressRatePerSec, cfg.Webhook.IngressBurst)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/reconciliation", func(rec chi.Router) {
			rec.Post("/", handlers.StartReconciliation())
			rec.Get("/runs", handlers.ListRuns())
			rec.Get("/runs/{id}", handlers.GetRun())
			rec.Get("/consistency", handlers.CheckConsistency())
			rec.Post("/conflicts/resolve", handlers.ResolveConflicts())
		})

		v1.Route("/webhooks", func(wh chi.Router) {
			wh.With(ingressLimiter.Middleware).Post("/upstream", handlers.ReceiveWebhook())
			wh.Get("/stats", handlers.WebhookStats())
			wh.Get("/events", handlers.ListWebhookEvents())
			wh.Get("/events/{id}", handlers.GetWebhookEvent())
			wh.Post("/events/{id}/retry", handlers.RetryWebhookEvent())
			wh.Post("/retry-failed", handlers.RetryFailedWebhooks())
		})

		v1.Get("/alerts", handlers.ListAlerts())
		v1.Post("/alerts/{id}/resolve", handlers.ResolveAlert())
	})

	logging.Info("Router initialized with metrics and logging middleware")
	return r
}
