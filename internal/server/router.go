package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/taskflow/taskflow/internal/handler"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/middleware"
	"github.com/taskflow/taskflow/internal/service"
)

// RouterConfig holds the HTTP-facing settings of the router.
type RouterConfig struct {
	IsDevelopment      bool
	CORSAllowedOrigins []string
	MaxRequestBodySize int64

	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration
}

// Deps wires the router to services and infrastructure.
type Deps struct {
	Config RouterConfig
	Logger *slog.Logger

	Auth  *service.AuthService
	Tasks *service.TaskService
	Users *service.UserService

	Tokens      middleware.TokenVerifier
	UserLoader  middleware.UserLoader
	RateLimiter middleware.RateLimiter
	Metrics     metrics.Recorder

	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler

	DB    handler.HealthChecker
	Cache handler.HealthChecker
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(deps Deps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	errs := httputil.ErrorWriter{Logger: logger, ExposeInternal: deps.Config.IsDevelopment}

	h := handler.New()
	healthHandler := handler.NewHealthHandler(deps.DB, deps.Cache, logger)
	authHandler := handler.NewAuthHandler(deps.Auth, errs)
	taskHandler := handler.NewTaskHandler(deps.Tasks, errs)
	adminHandler := handler.NewAdminHandler(deps.Users, errs)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = deps.Config.CORSAllowedOrigins

	authCfg := middleware.AuthConfig{
		Logger:  logger,
		Tokens:  deps.Tokens,
		Users:   deps.UserLoader,
		Metrics: recorder,
		Errors:  errs,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: deps.RateLimiter,
		Metrics: recorder,
		Enabled: deps.Config.RateLimitEnabled,
		Max:     deps.Config.RateLimitMax,
		Window:  deps.Config.RateLimitWindow,
	}

	r := chi.NewRouter()

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.Recoverer(logger, errs))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: deps.Config.IsDevelopment}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(deps.Config.MaxRequestBodySize))

	// Public endpoints
	r.Get("/", h.Index)
	r.Get("/health", healthHandler.Health)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Counted before authentication so token guessing is limited too.
		r.Use(middleware.RateLimitIP(rateLimitCfg))

		r.Get("/", h.APIIndex)

		r.Route("/v1", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.With(middleware.OptionalAuth(authCfg)).Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Auth(authCfg))
					r.Get("/me", authHandler.Me)
					r.Put("/me", authHandler.UpdateProfile)
					r.Put("/change-password", authHandler.ChangePassword)
				})
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))

				r.Get("/stats", taskHandler.Stats)
				r.Get("/", taskHandler.List)
				r.Post("/", taskHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(middleware.ValidateIDParam(errs, "id"))
					r.Get("/", taskHandler.Get)
					r.Put("/", taskHandler.Update)
					r.Delete("/", taskHandler.Delete)
					r.Patch("/status", taskHandler.UpdateStatus)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Auth(authCfg))
				r.Use(middleware.RequireAdmin(errs))

				r.Get("/stats", adminHandler.Stats)
				r.Get("/activity", adminHandler.Activity)
				r.Get("/users", adminHandler.ListUsers)

				r.Route("/users/{id}", func(r chi.Router) {
					r.Use(middleware.ValidateIDParam(errs, "id"))
					r.Get("/", adminHandler.GetUser)
					r.Put("/", adminHandler.UpdateUser)
					r.Delete("/", adminHandler.DeleteUser)
				})
			})
		})
	})

	return r
}
