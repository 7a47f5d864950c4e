package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/taskflow/taskflow/internal/model"
)

// ErrTaskNotFound is returned when no task has the requested id.
var ErrTaskNotFound = errors.New("task not found")

const taskSelect = `
	SELECT t.id, t.title, t.description, t.status, t.priority, t.due_date, t.user_id,
	       t.created_at, t.updated_at, u.name, u.email
	FROM tasks t
	JOIN users u ON u.id = t.user_id`

// TaskFilter narrows ListTasks. An empty OwnerID matches every owner.
type TaskFilter struct {
	OwnerID    string
	Statuses   []model.TaskStatus
	Priorities []model.TaskPriority
	Search     string // title or description, case-insensitive
	Page
}

// CreateTask inserts a new task.
func (r *Repository) CreateTask(ctx context.Context, task *model.Task) error {
	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.OwnerID,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTaskByID retrieves a task with its owner summary.
func (r *Repository) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task by ID: %w", err)
	}
	return task, nil
}

// UpdateTask writes the mutable fields of task. The owner never changes.
func (r *Repository) UpdateTask(ctx context.Context, task *model.Task) error {
	query := `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6, updated_at = $7
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.DueDate,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListTasks returns one page of tasks, newest first, and the total match count.
// The page query and the count run concurrently.
func (r *Repository) ListTasks(ctx context.Context, filter TaskFilter) ([]*model.Task, int64, error) {
	where := taskWhere(filter)

	var (
		tasks []*model.Task
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM tasks t`+where.String(), where.args...).Scan(&total)
	})
	g.Go(func() error {
		page := where
		page.args = append([]any(nil), where.args...)
		limit := page.next(filter.Limit)
		offset := page.next(filter.Offset())

		query := taskSelect + page.String() +
			` ORDER BY t.created_at DESC, t.id DESC LIMIT ` + limit + ` OFFSET ` + offset

		rows, err := r.pool.Query(gctx, query, page.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// CountTasksByOwner returns how many tasks ownerID has.
func (r *Repository) CountTasksByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE user_id = $1`, ownerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// TaskStats aggregates tasks by status and priority. An empty ownerID
// aggregates every task.
func (r *Repository) TaskStats(ctx context.Context, ownerID string) (*model.TaskStats, error) {
	var where whereClause
	if ownerID != "" {
		where.add("user_id = ?", ownerID)
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in-progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE priority = 'high')
		FROM tasks` + where.String()

	var s model.TaskStats
	err := r.pool.QueryRow(ctx, query, where.args...).Scan(
		&s.Total, &s.Pending, &s.InProgress, &s.Completed, &s.HighPriority,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get task stats: %w", err)
	}
	return &s, nil
}

func taskWhere(filter TaskFilter) whereClause {
	var where whereClause
	if filter.OwnerID != "" {
		where.add("t.user_id = ?", filter.OwnerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where.add("t.status = ANY(?)", pq.Array(statuses))
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			priorities[i] = string(p)
		}
		where.add("t.priority = ANY(?)", pq.Array(priorities))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(t.title ILIKE ? OR t.description ILIKE ?)", pattern, pattern)
	}
	return where
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		task  model.Task
		owner model.UserSummary
	)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.OwnerID,
		&task.CreatedAt,
		&task.UpdatedAt,
		&owner.Name,
		&owner.Email,
	)
	if err != nil {
		return nil, err
	}
	owner.ID = task.OwnerID
	task.Owner = &owner
	return &task, nil
}
