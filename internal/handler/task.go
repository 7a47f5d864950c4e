package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/service"
)

// TaskHandler handles HTTP requests for task operations. Every route is
// mounted behind the authentication gate; ownership is checked by the service.
type TaskHandler struct {
	svc  *service.TaskService
	errs httputil.ErrorWriter
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *service.TaskService, errs httputil.ErrorWriter) *TaskHandler {
	return &TaskHandler{svc: svc, errs: errs}
}

type taskData struct {
	Task any `json:"task"`
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	task, err := h.svc.Create(r.Context(), auth.UserFromContext(r.Context()), req.ToInput())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, "Task created", taskData{Task: task})
}

// List handles GET /api/v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	input, err := dto.ParseListTasksQuery(r)
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

// Get handles GET /api/v1/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Get(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteData(w, taskData{Task: task})
}

// Update handles PUT /api/v1/tasks/{id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTaskRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	task, err := h.svc.Update(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), req.ToInput())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Task updated", taskData{Task: task})
}

// UpdateStatus handles PATCH /api/v1/tasks/{id}/status.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	task, err := h.svc.SetStatus(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id"), req.ToStatus())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Task updated", taskData{Task: task})
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), auth.UserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Task deleted", nil)
}

// Stats handles GET /api/v1/tasks/stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), auth.UserFromContext(r.Context()))
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteData(w, map[string]any{"stats": stats})
}
