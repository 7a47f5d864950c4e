package model

import (
	"errors"
	"time"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskPriority ranks tasks.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

var (
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidTaskPriority = errors.New("invalid task priority")
)

// IsValid checks set membership only. Any status may follow any other.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Next returns the following status in the
// pending -> in-progress -> completed -> pending cycle.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case TaskStatusPending:
		return TaskStatusInProgress
	case TaskStatusInProgress:
		return TaskStatusCompleted
	default:
		return TaskStatusPending
	}
}

// ParseTaskStatus validates s as a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	if st := TaskStatus(s); st.IsValid() {
		return st, nil
	}
	return "", ErrInvalidTaskStatus
}

// IsValid checks that p is a known priority.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// ParseTaskPriority validates s as a TaskPriority.
func ParseTaskPriority(s string) (TaskPriority, error) {
	if p := TaskPriority(s); p.IsValid() {
		return p, nil
	}
	return "", ErrInvalidTaskPriority
}

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	OwnerID     string       `json:"-"`
	Owner       *UserSummary `json:"user,omitempty"` // populated on reads
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TaskStats summarises a set of tasks.
type TaskStats struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"pending"`
	InProgress   int64 `json:"inProgress"`
	Completed    int64 `json:"completed"`
	HighPriority int64 `json:"highPriority"`
}

// DashboardTaskStats is the task half of the admin dashboard.
type DashboardTaskStats struct {
	TotalTasks     int64 `json:"totalTasks"`
	PendingTasks   int64 `json:"pendingTasks"`
	CompletedTasks int64 `json:"completedTasks"`
}

// DashboardStats is returned by the admin stats endpoint.
type DashboardStats struct {
	Users UserStats          `json:"users"`
	Tasks DashboardTaskStats `json:"tasks"`
}
