package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/meditwin-platform/meditwin/internal/database"
	mw "github.com/meditwin-platform/meditwin/internal/middleware"
	inats "github.com/meditwin-platform/meditwin/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Pipeline
	Analyze http.HandlerFunc

	// Patient memory
	GetProfile    http.HandlerFunc
	UpdateProfile http.HandlerFunc
	History       http.HandlerFunc
	GetSummary    http.HandlerFunc

	// Biomarkers
	GetBiomarkers     http.HandlerFunc
	ReplaceBiomarkers http.HandlerFunc

	// Analysis history
	LatestAnalysis http.HandlerFunc
	ListAnalyses   http.HandlerFunc

	// Feedback
	SubmitFeedback http.HandlerFunc
	FeedbackBias   http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AnalyzeRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, redisClient *redis.Client, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe, always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe, checks DB, Redis, NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1, all routes bearer-authenticated
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Group(func(r chi.Router) {
				if cfg.AnalyzeRateLimiter != nil {
					r.Use(cfg.AnalyzeRateLimiter)
				}
				r.Post("/analyze", h.Analyze)
			})

			r.Route("/patients/{patientID}", func(r chi.Router) {
				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.UpdateProfile)
				r.Get("/history", h.History)
				r.Get("/summary", h.GetSummary)
				r.Get("/biomarkers", h.GetBiomarkers)
				r.Put("/biomarkers", h.ReplaceBiomarkers)
				r.Get("/analyses", h.ListAnalyses)
				r.Get("/analyses/latest", h.LatestAnalysis)
			})

			r.Post("/feedback", h.SubmitFeedback)
			r.Get("/feedback/bias", h.FeedbackBias)
		})
	})

	return r
}
