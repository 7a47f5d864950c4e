// Package service holds the resource controllers' business logic: each
// operation applies the authorization policy, performs its storage call
// and returns domain values or operational errors.
package service

import (
	"context"
	"math"

	"github.com/taskflow/taskflow/internal/activity"
	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

// UserStore is the credential store.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserProfile(ctx context.Context, id string, name, email *string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) (*model.User, error)
	PatchUser(ctx context.Context, id string, patch repository.UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id string) (int64, error)
	ListUsers(ctx context.Context, filter repository.UserFilter) ([]*model.User, int64, error)
	UserStats(ctx context.Context) (*model.UserStats, error)
}

// TaskStore is the task store.
type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter repository.TaskFilter) ([]*model.Task, int64, error)
	CountTasksByOwner(ctx context.Context, ownerID string) (int64, error)
	TaskStats(ctx context.Context, ownerID string) (*model.TaskStats, error)
}

// ActivityStore reads the persisted activity trail.
type ActivityStore interface {
	ListActivity(ctx context.Context, filter repository.ActivityFilter) ([]*model.ActivityEvent, error)
}

// EventPublisher records activity events without blocking the request.
type EventPublisher interface {
	PublishAsync(event activity.EventPayload)
}

// List paging bounds. Callers choose the defaults; the services only
// accept explicit values.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func newPagination(page repository.Page, total int64) Pagination {
	return Pagination{
		Page:  page.Page,
		Limit: page.Limit,
		Total: total,
		Pages: int(math.Ceil(float64(total) / float64(page.Limit))),
	}
}

// validatePage rejects out-of-range paging, zero included.
func validatePage(page, limit int) (repository.Page, error) {
	if page < 1 {
		return repository.Page{}, apperr.Validation("Page must be a positive integer")
	}
	if limit < 1 || limit > MaxPageLimit {
		return repository.Page{}, apperr.Validation("Limit must be between 1 and 100")
	}
	return repository.Page{Page: page, Limit: limit}, nil
}

func publish(ctx context.Context, events EventPublisher, t model.ActivityType, actorID, subjectID, detail string) {
	events.PublishAsync(activity.NewEvent(t, actorID, subjectID, activity.ClientIPFromContext(ctx), detail))
}

func callerID(caller *model.User) string {
	if caller == nil {
		return ""
	}
	return caller.ID
}
