package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getchdocs/getchdocs-api/internal/auth"
	"github.com/getchdocs/getchdocs-api/internal/middleware"
	"github.com/getchdocs/getchdocs-api/internal/model"
	"github.com/getchdocs/getchdocs-api/internal/service"
	"github.com/getchdocs/getchdocs-api/pkg/health"
	"github.com/getchdocs/getchdocs-api/pkg/logger"
)

// RouterConfig carries everything the API routes need.
type RouterConfig struct {
	Users     *service.UserService
	Documents *service.DocumentService
	Chat      *service.ChatService
	Dashboard *service.DashboardService
	Health    *health.Checker
	Tokens    *auth.Tokens

	MaxUploadBytes    int64
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	Logger *logger.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger

	healthHandler := NewHealthHandler(cfg.Health)
	authHandler := NewAuthHandler(cfg.Users, log)
	documentHandler := NewDocumentHandler(cfg.Documents, cfg.MaxUploadBytes, log)
	messageHandler := NewMessageHandler(cfg.Chat, log)
	streamHandler := NewStreamHandler(cfg.Chat, log)
	dashboardHandler := NewDashboardHandler(cfg.Dashboard, log)
	userHandler := NewUserHandler(cfg.Users, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Tokens))
			r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.Route("/documents", func(r chi.Router) {
				r.Get("/", documentHandler.List)
				r.Get("/{id}", documentHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(model.RoleAdmin))
					r.Post("/", documentHandler.Upload)
					r.Delete("/{id}", documentHandler.Delete)
				})
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", messageHandler.List)
				r.Post("/", messageHandler.Send)
				r.Post("/stream", streamHandler.Stream)
			})

			r.Get("/dashboard", dashboardHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))

				r.Get("/analytics/history", dashboardHandler.History)

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
					r.Put("/{id}", userHandler.Update)
					r.Delete("/{id}", userHandler.Delete)
				})
			})
		})
	})

	return r
}
