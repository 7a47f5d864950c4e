package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
)

// Date accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. Set is true
// when the field was present; a JSON null leaves Valid false.
type Date struct {
	Set   bool
	Valid bool
	Time  time.Time
}

var errInvalidDate = errors.New("dueDate must be an ISO 8601 date")

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	d.Set = true
	if bytes.Equal(b, []byte("null")) {
		d.Valid = false
		return nil
	}

	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return errInvalidDate
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Valid = false
		return nil
	}

	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t.UTC()
			d.Valid = true
			return nil
		}
	}
	return errInvalidDate
}

func (d Date) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
	Status      string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     Date   `json:"dueDate" validate:"-"`
}

// Normalize trims text fields.
func (r *CreateTaskRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

// ToInput converts the request to service input.
func (r *CreateTaskRequest) ToInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      model.TaskStatus(r.Status),
		Priority:    model.TaskPriority(r.Priority),
		DueDate:     r.DueDate.ptr(),
	}
}

// UpdateTaskRequest represents the request body for updating a task.
// Absent fields are left unchanged; "dueDate": null clears the due date.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitnil,min=3,max=100"`
	Description *string `json:"description" validate:"omitnil,max=500"`
	Status      *string `json:"status" validate:"omitnil,oneof=pending in-progress completed"`
	Priority    *string `json:"priority" validate:"omitnil,oneof=low medium high"`
	DueDate     Date    `json:"dueDate" validate:"-"`
}

// Normalize trims text fields.
func (r *UpdateTaskRequest) Normalize() {
	trimPtr(r.Title)
	trimPtr(r.Description)
}

// ToInput converts the request to service input.
func (r *UpdateTaskRequest) ToInput() service.UpdateTaskInput {
	input := service.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Status != nil {
		status := model.TaskStatus(*r.Status)
		input.Status = &status
	}
	if r.Priority != nil {
		priority := model.TaskPriority(*r.Priority)
		input.Priority = &priority
	}
	if r.DueDate.Set {
		input.DueDate = r.DueDate.ptr()
		input.ClearDueDate = !r.DueDate.Valid
	}
	return input
}

// UpdateStatusRequest represents the body of PATCH /tasks/{id}/status.
// An absent status advances the task one step.
type UpdateStatusRequest struct {
	Status *string `json:"status" validate:"omitnil,oneof=pending in-progress completed"`
}

// ToStatus returns the requested status, or nil to advance.
func (r *UpdateStatusRequest) ToStatus() *model.TaskStatus {
	if r.Status == nil {
		return nil
	}
	status := model.TaskStatus(*r.Status)
	return &status
}
