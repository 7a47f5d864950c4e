package dto

import (
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
)

// UpdateUserRequest represents the request body for PUT /admin/users/{id}.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitnil,min=2,max=50"`
	Email    *string `json:"email" validate:"omitnil,email,max=254"`
	Role     *string `json:"role" validate:"omitnil,oneof=user admin"`
	IsActive *bool   `json:"isActive"`
}

// Normalize trims text fields.
func (r *UpdateUserRequest) Normalize() {
	trimPtr(r.Name)
	trimPtr(r.Email)
}

// ToInput converts the request to service input.
func (r *UpdateUserRequest) ToInput() service.UpdateUserInput {
	input := service.UpdateUserInput{
		Name:     r.Name,
		Email:    r.Email,
		IsActive: r.IsActive,
	}
	if r.Role != nil {
		role := model.Role(*r.Role)
		input.Role = &role
	}
	return input
}

// UserDetailResponse is a user with their task count.
type UserDetailResponse struct {
	User      *model.User `json:"user"`
	TaskCount int64       `json:"taskCount"`
}
