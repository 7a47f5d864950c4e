package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

var errTaskNotFound = apperr.NotFound("Task not found")

// TaskService handles task business logic. Every operation on an existing
// task passes the ownership gate before it touches the store.
type TaskService struct {
	tasks   TaskStore
	metrics metrics.Recorder
}

// NewTaskService creates a new TaskService.
func NewTaskService(tasks TaskStore, recorder metrics.Recorder) *TaskService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &TaskService{tasks: tasks, metrics: recorder}
}

// CreateTaskInput defines input for creating a task. Zero status and
// priority take their defaults.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      model.TaskStatus
	Priority    model.TaskPriority
	DueDate     *time.Time
}

// Create stores a new task owned by the caller.
func (s *TaskService) Create(ctx context.Context, caller *model.User, input CreateTaskInput) (*model.Task, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	status := input.Status
	if status == "" {
		status = model.TaskStatusPending
	}
	priority := input.Priority
	if priority == "" {
		priority = model.TaskPriorityMedium
	}
	if !status.IsValid() {
		return nil, apperr.Validation("Invalid status")
	}
	if !priority.IsValid() {
		return nil, apperr.Validation("Invalid priority")
	}

	now := time.Now().UTC()
	task := &model.Task{
		ID:          model.NewID(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		OwnerID:     caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.metrics.IncTaskCreated()
	task.Owner = caller.Summary()
	return task, nil
}

// ListTasksInput narrows List. UserID is honoured for admins only.
type ListTasksInput struct {
	Statuses   []model.TaskStatus
	Priorities []model.TaskPriority
	Search     string
	UserID     string
	Page       int
	Limit      int
}

// TaskList is one page of tasks.
type TaskList struct {
	Tasks      []*model.Task `json:"tasks"`
	Pagination Pagination    `json:"pagination"`
}

// List returns the caller's tasks, or any owner's tasks for admins.
func (s *TaskService) List(ctx context.Context, caller *model.User, input ListTasksInput) (*TaskList, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	page, err := validatePage(input.Page, input.Limit)
	if err != nil {
		return nil, err
	}

	filter := repository.TaskFilter{
		OwnerID:    caller.ID,
		Statuses:   input.Statuses,
		Priorities: input.Priorities,
		Search:     strings.TrimSpace(input.Search),
		Page:       page,
	}
	if caller.IsAdmin() {
		filter.OwnerID = input.UserID
	}

	tasks, total, err := s.tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}

	return &TaskList{Tasks: tasks, Pagination: newPagination(page, total)}, nil
}

// Get returns one task.
func (s *TaskService) Get(ctx context.Context, caller *model.User, id string) (*model.Task, error) {
	return s.loadAuthorized(ctx, caller, id)
}

// UpdateTaskInput carries the fields to change; nil fields are left alone.
// ClearDueDate removes the due date.
type UpdateTaskInput struct {
	Title        *string
	Description  *string
	Status       *model.TaskStatus
	Priority     *model.TaskPriority
	DueDate      *time.Time
	ClearDueDate bool
}

// Update changes a task. The owner never changes.
func (s *TaskService) Update(ctx context.Context, caller *model.User, id string, input UpdateTaskInput) (*model.Task, error) {
	task, err := s.loadAuthorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, apperr.Validation("Invalid status")
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, apperr.Validation("Invalid priority")
		}
		task.Priority = *input.Priority
	}
	switch {
	case input.ClearDueDate:
		task.DueDate = nil
	case input.DueDate != nil:
		task.DueDate = input.DueDate
	}

	return s.save(ctx, task)
}

// SetStatus sets a task's status, or advances it one step through
// pending, in-progress and completed when status is nil.
func (s *TaskService) SetStatus(ctx context.Context, caller *model.User, id string, status *model.TaskStatus) (*model.Task, error) {
	task, err := s.loadAuthorized(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if status == nil {
		task.Status = task.Status.Next()
	} else {
		if !status.IsValid() {
			return nil, apperr.Validation("Invalid status")
		}
		task.Status = *status
	}

	return s.save(ctx, task)
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, caller *model.User, id string) error {
	if _, err := s.loadAuthorized(ctx, caller, id); err != nil {
		return err
	}

	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return errTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}

	s.metrics.IncTaskDeleted()
	return nil
}

// Stats counts the caller's tasks, or every task for admins.
func (s *TaskService) Stats(ctx context.Context, caller *model.User) (*model.TaskStats, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	ownerID := caller.ID
	if caller.IsAdmin() {
		ownerID = ""
	}

	stats, err := s.tasks.TaskStats(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// loadAuthorized fetches a task and applies the ownership gate against its
// stored owner. Non-admins get the same Forbidden for missing and foreign
// tasks; admins get NotFound for missing ones.
func (s *TaskService) loadAuthorized(ctx context.Context, caller *model.User, id string) (*model.Task, error) {
	if caller == nil {
		return nil, apperr.Unauthenticated("Not authenticated")
	}

	task, err := s.tasks.GetTaskByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrTaskNotFound) {
			return nil, fmt.Errorf("load task: %w", err)
		}
		if caller.IsAdmin() {
			return nil, errTaskNotFound
		}
		task = nil
	}

	if err := auth.CanAccessTask(caller, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) save(ctx context.Context, task *model.Task) (*model.Task, error) {
	task.UpdatedAt = time.Now().UTC()
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, errTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.metrics.IncTaskUpdated()
	return task, nil
}
