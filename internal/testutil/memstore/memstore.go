// Package memstore is an in-memory implementation of the repository methods
// used by services and handlers. It mirrors the PostgreSQL semantics that
// callers depend on: case-insensitive unique emails, cascade delete, filters,
// newest-first ordering and offset pagination.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

// Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    map[string]model.User
	tasks    map[string]model.Task
	activity []model.ActivityEvent
	eventIDs map[string]struct{}

	// PingErr, when set, is returned by Ping.
	PingErr error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]model.User),
		tasks:    make(map[string]model.Task),
		eventIDs: make(map[string]struct{}),
	}
}

func (s *Store) Ping(context.Context) error {
	return s.PingErr
}

// ============================================================================
// Users
// ============================================================================

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, user.ID) {
		return repository.ErrEmailExists
	}
	s.users[user.ID] = *user
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = model.NormalizeEmail(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *Store) UpdateUserProfile(ctx context.Context, id string, name, email *string) (*model.User, error) {
	return s.PatchUser(ctx, id, repository.UserPatch{Name: name, Email: email})
}

func (s *Store) UpdateUserPassword(ctx context.Context, id, passwordHash string) (*model.User, error) {
	return s.PatchUser(ctx, id, repository.UserPatch{PasswordHash: &passwordHash})
}

// PatchUser changes only the fields set in patch, like the SQL version.
func (s *Store) PatchUser(_ context.Context, id string, patch repository.UserPatch) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		email := model.NormalizeEmail(*patch.Email)
		if s.emailTaken(email, id) {
			return nil, repository.ErrEmailExists
		}
		user.Email = email
	}
	if patch.PasswordHash != nil {
		user.PasswordHash = *patch.PasswordHash
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}
	user.UpdatedAt = patch.UpdatedAt
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}
	s.users[id] = user

	u := user
	return &u, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return 0, repository.ErrUserNotFound
	}

	var removed int64
	for taskID, task := range s.tasks {
		if task.OwnerID == id {
			delete(s.tasks, taskID)
			removed++
		}
	}
	delete(s.users, id)
	return removed, nil
}

func (s *Store) ListUsers(_ context.Context, filter repository.UserFilter) ([]*model.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*model.User
	for _, user := range s.users {
		if search != "" && !strings.Contains(strings.ToLower(user.Name), search) &&
			!strings.Contains(strings.ToLower(user.Email), search) {
			continue
		}
		if len(filter.Roles) > 0 && !contains(filter.Roles, user.Role) {
			continue
		}
		if filter.IsActive != nil && user.IsActive != *filter.IsActive {
			continue
		}
		u := user
		matched = append(matched, &u)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (s *Store) UserStats(context.Context) (*model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats model.UserStats
	for _, user := range s.users {
		stats.TotalUsers++
		if user.IsActive {
			stats.ActiveUsers++
		}
		if user.Role == model.RoleAdmin {
			stats.AdminUsers++
		}
	}
	return &stats, nil
}

func (s *Store) emailTaken(email, exceptID string) bool {
	email = strings.ToLower(email)
	for id, user := range s.users {
		if id != exceptID && strings.ToLower(user.Email) == email {
			return true
		}
	}
	return false
}

// ============================================================================
// Tasks
// ============================================================================

func (s *Store) CreateTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *task
	stored.Owner = nil
	s.tasks[task.ID] = stored
	return nil
}

func (s *Store) GetTaskByID(_ context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	return s.withOwner(task), nil
}

func (s *Store) UpdateTask(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok {
		return repository.ErrTaskNotFound
	}
	existing.Title = task.Title
	existing.Description = task.Description
	existing.Status = task.Status
	existing.Priority = task.Priority
	existing.DueDate = task.DueDate
	existing.UpdatedAt = task.UpdatedAt
	s.tasks[task.ID] = existing
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) ListTasks(_ context.Context, filter repository.TaskFilter) ([]*model.Task, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*model.Task
	for _, task := range s.tasks {
		if filter.OwnerID != "" && task.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, task.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !contains(filter.Priorities, task.Priority) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(task.Title), search) &&
			!strings.Contains(strings.ToLower(task.Description), search) {
			continue
		}
		matched = append(matched, s.withOwner(task))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (s *Store) CountTasksByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, task := range s.tasks {
		if task.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) TaskStats(_ context.Context, ownerID string) (*model.TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats model.TaskStats
	for _, task := range s.tasks {
		if ownerID != "" && task.OwnerID != ownerID {
			continue
		}
		stats.Total++
		switch task.Status {
		case model.TaskStatusPending:
			stats.Pending++
		case model.TaskStatusInProgress:
			stats.InProgress++
		case model.TaskStatusCompleted:
			stats.Completed++
		}
		if task.Priority == model.TaskPriorityHigh {
			stats.HighPriority++
		}
	}
	return &stats, nil
}

func (s *Store) withOwner(task model.Task) *model.Task {
	if owner, ok := s.users[task.OwnerID]; ok {
		task.Owner = owner.Summary()
	}
	return &task
}

// ============================================================================
// Activity
// ============================================================================

func (s *Store) InsertActivityEvents(_ context.Context, events []*model.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if _, dup := s.eventIDs[e.EventID]; dup {
			continue
		}
		s.eventIDs[e.EventID] = struct{}{}
		s.activity = append(s.activity, *e)
	}
	return nil
}

func (s *Store) ListActivity(_ context.Context, filter repository.ActivityFilter) ([]*model.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.ActivityEvent
	for i := len(s.activity) - 1; i >= 0; i-- {
		e := s.activity[i]
		if filter.SubjectID != "" && e.SubjectID != filter.SubjectID {
			continue
		}
		if len(filter.Types) > 0 && !contains(filter.Types, e.Type) {
			continue
		}
		if filter.Since != nil && e.OccurredAt.Before(*filter.Since) {
			continue
		}
		out = append(out, &e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page repository.Page) []T {
	offset := page.Offset()
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if page.Limit > 0 && offset+page.Limit < end {
		end = offset + page.Limit
	}
	return items[offset:end]
}
