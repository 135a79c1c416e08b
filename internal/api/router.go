package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sutbot/sutbot/internal/database"
	"github.com/sutbot/sutbot/internal/events"
	mw "github.com/sutbot/sutbot/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Usage handlers
	CheckUsage  http.HandlerFunc
	UsageStatus http.HandlerFunc
	ResetUsage  http.HandlerFunc

	// Persona handlers
	UsePersona    http.HandlerFunc
	CreatePersona http.HandlerFunc
	ListPersonas  http.HandlerFunc
	DeletePersona http.HandlerFunc
	PersonaSlots  http.HandlerFunc

	// Membership handlers
	MembershipEvent   http.HandlerFunc
	RefreshMembership http.HandlerFunc

	// Subscription handlers
	GrantSubscription http.HandlerFunc
	GetSubscription   http.HandlerFunc

	// Cooldown handlers
	CheckCooldown http.HandlerFunc

	// Analytics handlers
	ListAnalyticsEvents http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler

	// Per-user rate limiter applied to the whole v1 surface
	RateLimiter func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

func NewRouter(pool *pgxpool.Pool, eventsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
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

	// Readiness probe checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if eventsClient != nil && !eventsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if eventsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1, service-token protected
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		if h.RateLimiter != nil {
			r.Use(h.RateLimiter)
		}

		r.Route("/usage", func(r chi.Router) {
			r.Post("/check", h.CheckUsage)
			r.Get("/status", h.UsageStatus)
			r.Post("/reset", h.ResetUsage)
		})

		r.Route("/personas", func(r chi.Router) {
			r.Post("/", h.CreatePersona)
			r.Get("/", h.ListPersonas)
			r.Post("/use", h.UsePersona)
			r.Get("/slots", h.PersonaSlots)
			r.Delete("/{personaID}", h.DeletePersona)
		})

		r.Route("/membership", func(r chi.Router) {
			r.Post("/events", h.MembershipEvent)
			r.Post("/refresh", h.RefreshMembership)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.GrantSubscription)
			r.Get("/{userID}", h.GetSubscription)
		})

		r.Post("/cooldowns/check", h.CheckCooldown)

		r.Get("/analytics/events", h.ListAnalyticsEvents)
	})

	return r
}
