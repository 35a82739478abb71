package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ramevans/Medical-Platform/internal/api/middleware"
	"github.com/ramevans/Medical-Platform/internal/handlers"
	"github.com/ramevans/Medical-Platform/internal/store"
)

// Body size caps. Speech uploads carry audio and get their own cap; every
// other endpoint takes small JSON bodies.
const (
	maxJSONBody   = 1 << 20  // 1 MiB, batch telemetry ingestion included
	maxUploadBody = 32 << 20 // 32 MiB
)

// NewRouter creates and configures the HTTP router. redisStore may be nil
// when speech uploads and rate limiting are disabled.
func NewRouter(logger zerolog.Logger, db store.DataStore, chat *store.ChatStore, redisStore *store.RedisStore, uploadDir string, rlCfg middleware.RateLimiterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting, when Redis is available
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, rlCfg)
		r.Use(limiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(logger, db, chat, redisStore, uploadDir)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// JSON API
	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxJSONBody))

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", h.ListDevices)
			r.Post("/", h.CreateDevice)
			r.Get("/{deviceID}", h.GetDevice)
			r.Put("/{deviceID}", h.UpdateDevice)
			r.Delete("/{deviceID}", h.DeleteDevice)
		})

		r.Route("/data", func(r chi.Router) {
			r.Get("/", h.ListReadings)
			r.Post("/", h.IngestReadings)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Post("/login", h.Login)

			r.Route("/roles", func(r chi.Router) {
				r.Get("/", h.ListRoles)
				r.Post("/", h.CreateRole)
				r.Get("/{roleID}", h.GetRole)
				r.Put("/{roleID}", h.UpdateRole)
			})

			r.Get("/{userID}", h.GetUser)
			r.Put("/{userID}", h.UpdateUser)
			r.Delete("/{userID}", h.DeleteUser)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", h.SendMessage)
			r.Post("/query", h.QueryMessages)
			r.Get("/latest", h.LatestMessages)
			r.Get("/conversations", h.ListConversations)
		})
	})

	// Speech uploads take multipart audio bodies
	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(maxUploadBody))

		r.Post("/speech", h.UploadSpeech)
		r.Get("/speech/{taskID}", h.GetSpeechJob)
	})

	return r
}
