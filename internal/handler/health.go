package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/taskflow/taskflow/internal/httputil"
)

const readinessTimeout = 5 * time.Second

// HealthChecker defines an interface for checking service health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler manages health check endpoints.
type HealthHandler struct {
	db     HealthChecker
	cache  HealthChecker
	logger *slog.Logger
	now    func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
// Pass nil for db or cache if they are not configured.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// HealthResponse represents the readiness response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type livenessResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, livenessResponse{
		Success:   true,
		Message:   "OK",
		Timestamp: h.now().UTC(),
	})
}

// Healthz is a liveness probe. It never touches dependencies.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz is a readiness probe. It returns 200 only when postgres and redis
// both answer a ping.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{
		"postgres": h.check(ctx, "postgres", h.db),
		"redis":    h.check(ctx, "redis", h.cache),
	}

	resp := HealthResponse{Status: "ok", Checks: checks}
	status := http.StatusOK
	for _, result := range checks {
		if result == "unavailable" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}

	httputil.WriteJSON(w, status, resp)
}

func (h *HealthHandler) check(ctx context.Context, name string, c HealthChecker) string {
	if c == nil {
		return "not configured"
	}
	if err := c.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "dependency", name, "error", err)
		return "unavailable"
	}
	return "ok"
}
