package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/taskflow/taskflow/internal/activity"
	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/metrics"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 100
)

var errActivityLimit = apperr.Validation("Limit must be between 1 and 100")

// UserService holds the admin operations on users. Every method applies
// the admin role gate itself, independent of route middleware.
type UserService struct {
	users    UserStore
	tasks    TaskStore
	activity ActivityStore
	events   EventPublisher
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users UserStore, tasks TaskStore, activityStore ActivityStore, events EventPublisher, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if events == nil {
		events = activity.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:    users,
		tasks:    tasks,
		activity: activityStore,
		events:   events,
		metrics:  recorder,
		logger:   logger.With("component", "service.users"),
	}
}

// ListUsersInput narrows List.
type ListUsersInput struct {
	Search   string
	Roles    []model.Role
	IsActive *bool
	Page     int
	Limit    int
}

// UserList is one page of users.
type UserList struct {
	Users      []*model.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// List returns one page of users, newest first.
func (s *UserService) List(ctx context.Context, caller *model.User, input ListUsersInput) (*UserList, error) {
	if err := auth.RequireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}

	page, err := validatePage(input.Page, input.Limit)
	if err != nil {
		return nil, err
	}

	users, total, err := s.users.ListUsers(ctx, repository.UserFilter{
		Search:   strings.TrimSpace(input.Search),
		Roles:    input.Roles,
		IsActive: input.IsActive,
		Page:     page,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}

	return &UserList{Users: users, Pagination: newPagination(page, total)}, nil
}

// UserDetail is a user with the number of tasks they own.
type UserDetail struct {
	User      *model.User
	TaskCount int64
}

// Get returns a user and their task count, loaded concurrently.
func (s *UserService) Get(ctx context.Context, caller *model.User, id string) (*UserDetail, error) {
	if err := auth.RequireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}

	var detail UserDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		user, err := s.users.GetUserByID(gctx, id)
		if err != nil {
			return err
		}
		detail.User = user
		return nil
	})
	g.Go(func() error {
		count, err := s.tasks.CountTasksByOwner(gctx, id)
		if err != nil {
			return err
		}
		detail.TaskCount = count
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &detail, nil
}

// UpdateUserInput carries the fields an admin may change.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Role     *model.Role
	IsActive *bool
}

// Update changes another user's account. An admin cannot demote themselves.
func (s *UserService) Update(ctx context.Context, caller *model.User, id string, input UpdateUserInput) (*model.User, error) {
	if err := auth.RequireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := auth.GuardSelfRoleChange(caller, id, input.Role); err != nil {
		return nil, err
	}

	var changed []string
	if input.Name != nil {
		changed = append(changed, "name")
	}
	if input.Email != nil {
		changed = append(changed, "email")
	}
	if input.Role != nil {
		changed = append(changed, "role")
	}
	if input.IsActive != nil {
		changed = append(changed, "isActive")
	}

	user, err := s.users.PatchUser(ctx, id, repository.UserPatch{
		Name:     input.Name,
		Email:    input.Email,
		Role:     input.Role,
		IsActive: input.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, errEmailInUse
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	publish(ctx, s.events, model.ActivityUserUpdated, caller.ID, user.ID, strings.Join(changed, ","))
	s.logger.Info("user updated by admin",
		slog.String("admin_id", caller.ID),
		slog.String("user_id", user.ID),
		slog.Any("fields", changed),
	)
	return user, nil
}

// Delete removes a user and every task they own. An admin cannot delete
// their own account. It returns the number of tasks removed.
func (s *UserService) Delete(ctx context.Context, caller *model.User, id string) (int64, error) {
	if err := auth.RequireRole(caller, model.RoleAdmin); err != nil {
		return 0, err
	}
	if err := auth.GuardSelfDelete(caller, id); err != nil {
		return 0, err
	}

	removed, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, errUserNotFound
		}
		return 0, fmt.Errorf("delete user: %w", err)
	}

	s.metrics.IncUserDeleted()
	publish(ctx, s.events, model.ActivityUserDeleted, caller.ID, id, fmt.Sprintf("tasks_removed=%d", removed))
	s.logger.Info("user deleted by admin",
		slog.String("admin_id", caller.ID),
		slog.String("user_id", id),
		slog.Int64("tasks_removed", removed),
	)
	return removed, nil
}

// DashboardStats aggregates user and task counts concurrently.
func (s *UserService) DashboardStats(ctx context.Context, caller *model.User) (*model.DashboardStats, error) {
	if err := auth.RequireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}

	var (
		users *model.UserStats
		tasks *model.TaskStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.UserStats(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.tasks.TaskStats(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	return &model.DashboardStats{
		Users: *users,
		Tasks: model.DashboardTaskStats{
			TotalTasks:     tasks.Total,
			PendingTasks:   tasks.Pending,
			CompletedTasks: tasks.Completed,
		},
	}, nil
}

// ActivityInput narrows Activity.
type ActivityInput struct {
	UserID string
	Limit  int
}

// Activity returns the most recent account events, optionally about one user.
func (s *UserService) Activity(ctx context.Context, caller *model.User, input ActivityInput) ([]*model.ActivityEvent, error) {
	if err := auth.RequireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit == 0 {
		limit = defaultActivityLimit
	}
	if limit < 1 || limit > maxActivityLimit {
		return nil, errActivityLimit
	}

	events, err := s.activity.ListActivity(ctx, repository.ActivityFilter{
		SubjectID: input.UserID,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if events == nil {
		events = []*model.ActivityEvent{}
	}
	return events, nil
}
