package dto

import (
	"strings"
	"time"

	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
)

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

// Normalize trims the fields that are trimmed before validation.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

// ToInput converts the request to service input.
func (r *RegisterRequest) ToInput() service.RegisterInput {
	return service.RegisterInput{
		Name:     r.Name,
		Email:    r.Email,
		Password: r.Password,
		Role:     model.Role(r.Role),
	}
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims the email.
func (r *LoginRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// UpdateProfileRequest represents the request body for PUT /auth/me.
// Role and isActive are not accepted here.
type UpdateProfileRequest struct {
	Name  *string `json:"name" validate:"omitnil,min=2,max=50"`
	Email *string `json:"email" validate:"omitnil,email,max=254"`
}

// Normalize trims the provided fields.
func (r *UpdateProfileRequest) Normalize() {
	trimPtr(r.Name)
	trimPtr(r.Email)
}

// ChangePasswordRequest represents the request body for PUT /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128"`
}

// UserResponse is the short user shape returned with tokens.
type UserResponse struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// ProfileResponse is the caller's own account.
type ProfileResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ToProfileResponse converts a User model to ProfileResponse DTO.
func ToProfileResponse(u *model.User) ProfileResponse {
	return ProfileResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// AuthResponse carries a fresh token.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// ToAuthResponse converts a service result to AuthResponse DTO.
func ToAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      ToUserResponse(res.User),
	}
}
