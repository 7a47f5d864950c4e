package handler

import (
	"net/http"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/handler/dto"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/service"
)

// AuthHandler handles HTTP requests for account operations.
type AuthHandler struct {
	svc  *service.AuthService
	errs httputil.ErrorWriter
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, errs httputil.ErrorWriter) *AuthHandler {
	return &AuthHandler{svc: svc, errs: errs}
}

// Register handles POST /api/v1/auth/register. An admin token, when
// present, allows the admin role to be requested.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	res, err := h.svc.Register(r.Context(), auth.UserFromContext(r.Context()), req.ToInput())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusCreated, "User registered", dto.ToAuthResponse(res))
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Login successful", dto.ToAuthResponse(res))
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())
	httputil.WriteData(w, map[string]any{"user": dto.ToProfileResponse(user)})
}

// UpdateProfile handles PUT /api/v1/auth/me.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	user, err := h.svc.UpdateProfile(r.Context(), auth.UserFromContext(r.Context()), service.ProfileInput{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Profile updated", map[string]any{"user": dto.ToUserResponse(user)})
}

// ChangePassword handles PUT /api/v1/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if err := decodeRequest(r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	res, err := h.svc.ChangePassword(r.Context(), auth.UserFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	httputil.WriteSuccess(w, http.StatusOK, "Password changed", dto.ToAuthResponse(res))
}
