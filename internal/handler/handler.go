// Package handler provides HTTP request handlers.
package handler

import (
	"net/http"

	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/httputil"
)

// APIVersion is reported by the index endpoints.
const APIVersion = "1.0.0"

// Handler serves the public index endpoints and the router fallbacks.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, http.StatusOK, "TaskFlow API", nil)
}

type endpointIndex struct {
	Auth  string `json:"auth"`
	Tasks string `json:"tasks"`
	Admin string `json:"admin"`
}

type apiIndexResponse struct {
	Success   bool          `json:"success"`
	Version   string        `json:"version"`
	Endpoints endpointIndex `json:"endpoints"`
}

// APIIndex handles GET /api.
func (h *Handler) APIIndex(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, apiIndexResponse{
		Success: true,
		Version: APIVersion,
		Endpoints: endpointIndex{
			Auth:  "/api/v1/auth",
			Tasks: "/api/v1/tasks",
			Admin: "/api/v1/admin",
		},
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteFailure(w, http.StatusNotFound, "Route "+r.URL.Path+" not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
}

type normalizer interface {
	Normalize()
}

// decodeRequest decodes, trims and validates a request body.
func decodeRequest(r *http.Request, dst any) error {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		return err
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	return dto.Validate(dst)
}
