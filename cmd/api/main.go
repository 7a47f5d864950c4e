// Package main is the entrypoint for the TaskFlow API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"strings"

	"github.com/taskflow/taskflow/internal/activity"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/cache"
	"github.com/taskflow/taskflow/internal/config"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/repository"
	"github.com/taskflow/taskflow/internal/server"
	"github.com/taskflow/taskflow/internal/service"
	"github.com/taskflow/taskflow/migrations"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: 2,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		applied, err := repo.Migrate(ctx, migrations.FS)
		if err != nil {
			logger.Error("failed to apply migrations", "error", sanitizeError(err, cfg.DatabaseURL))
			os.Exit(1)
		}
		logger.Info("migrations applied", "count", len(applied), "names", applied)
	}

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{PoolSize: cfg.RedisPool, MinIdleConns: 2})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Metrics
	var recorder metrics.Recorder = metrics.NewNoop()
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		prom := metrics.NewPrometheus()
		recorder = prom
		metricsHandler = prom.Handler()
	}

	// Activity trail
	var events service.EventPublisher = activity.Discard{}
	var worker *activity.Worker
	if cfg.ActivityEnabled {
		events = activity.NewPublisher(cacheClient.Client(), logger, recorder)
		worker = activity.NewWorker(cacheClient.Client(), repo, logger, recorder, activity.WorkerConfig{
			BatchSize: cfg.ActivityBatch,
		})
	}

	// Initialize services
	hasher := auth.NewPasswordHasher(auth.DefaultParams, runtime.GOMAXPROCS(0))
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTExpiresIn, cfg.JWTIssuer)

	router := server.NewRouter(server.Deps{
		Config: server.RouterConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			CORSAllowedOrigins: cfg.GetCORSAllowedOrigins(),
			MaxRequestBodySize: cfg.MaxRequestBodySize,
			RateLimitEnabled:   cfg.RateLimitEnabled,
			RateLimitMax:       cfg.RateLimitMax,
			RateLimitWindow:    cfg.RateLimitWindow,
		},
		Logger:         logger,
		Auth:           service.NewAuthService(repo, hasher, tokens, events, recorder, logger),
		Tasks:          service.NewTaskService(repo, recorder),
		Users:          service.NewUserService(repo, repo, repo, events, recorder, logger),
		Tokens:         tokens,
		UserLoader:     repo,
		RateLimiter:    cacheClient,
		Metrics:        recorder,
		MetricsHandler: metricsHandler,
		DB:             repo,
		Cache:          cacheClient,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first so they stop last.
	srv.OnShutdown("postgres", repo.Shutdown)
	srv.OnShutdown("redis", cacheClient.Shutdown)
	if worker != nil {
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("activity worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("activity-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"metrics", cfg.MetricsEnabled,
		"activity", cfg.ActivityEnabled,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(cfg.LogLevel),
		AddSource: cfg.IsDevelopment(),
	}

	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "taskflow-api")
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel accepts the slog level names, case-insensitively.
// Unknown values fall back to info.
func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

var credentialPattern = regexp.MustCompile(`(?i)(password|secret)=[^\s&]+`)

// redactURL keeps the username of a connection URL and drops the password.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	if parsed.User == nil {
		return parsed.String()
	}

	if username := parsed.User.Username(); username != "" {
		parsed.User = url.User(username)
	} else {
		parsed.User = url.User("redacted")
	}
	return parsed.String()
}

// sanitizeError replaces each secret URL inside err's text with its
// redacted form and masks key=value credentials.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		replacement := redactURL(secret)
		if replacement == "" {
			replacement = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, replacement)
	}

	return credentialPattern.ReplaceAllString(msg, "$1=redacted")
}
