package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/service"
)

// AdminHandler provides admin-only endpoints. Routes are mounted behind the
// admin role gate and the service checks the role again.
type AdminHandler struct {
	svc  *service.UserService
	errs httputil.ErrorWriter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *service.UserService, errs httputil.ErrorWriter) *AdminHandler {
	return &AdminHandler{svc: svc, errs: errs}
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.DashboardStats(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteData(w, stats)
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	input, err := dto.ParseListUsersQuery(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	list, err := h.svc.List(r.Context(), auth.UserFromContext(r.Context()), input)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteData(w, list)
}

// GetUser handles GET /api/v1/admin/users/{id}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteData(w, dto.UserDetailResponse{User: detail.User, TaskCount: detail.TaskCount})
}

// UpdateUser handles PUT /api/v1/admin/users/{id}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateUserRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	user, err := h.svc.Update(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "User updated", map[string]any{"user": user})
}

// DeleteUser handles DELETE /api/v1/admin/users/{id}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "User deleted", nil)
}

// Activity handles GET /api/v1/admin/activity.
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	input, err := dto.ParseActivityQuery(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	events, err := h.svc.Activity(r.Context(), auth.UserFromContext(r.Context()), input)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteData(w, map[string]any{"events": events})
}
