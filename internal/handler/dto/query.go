package dto

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/httputil"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/service"
)

var errInvalidID = apperr.Validation("Invalid ID")

// ParseListTasksQuery reads the task list filters. status and priority
// accept comma-separated values.
func ParseListTasksQuery(r *http.Request) (service.ListTasksInput, error) {
	q := r.URL.Query()
	var input service.ListTasksInput

	for _, raw := range splitList(q.Get("status")) {
		status, err := model.ParseTaskStatus(raw)
		if err != nil {
			return input, apperr.Validation("Invalid status")
		}
		input.Statuses = append(input.Statuses, status)
	}
	for _, raw := range splitList(q.Get("priority")) {
		priority, err := model.ParseTaskPriority(raw)
		if err != nil {
			return input, apperr.Validation("Invalid priority")
		}
		input.Priorities = append(input.Priorities, priority)
	}

	if userID := q.Get("userId"); userID != "" {
		if !model.IsValidID(userID) {
			return input, errInvalidID
		}
		input.UserID = userID
	}
	input.Search = q.Get("search")

	var err error
	if input.Page, input.Limit, err = parsePage(r); err != nil {
		return input, err
	}
	return input, nil
}

// ParseListUsersQuery reads the admin user list filters.
func ParseListUsersQuery(r *http.Request) (service.ListUsersInput, error) {
	q := r.URL.Query()
	var input service.ListUsersInput

	for _, raw := range splitList(q.Get("role")) {
		role, err := model.ParseRole(raw)
		if err != nil {
			return input, apperr.Validation("Invalid role")
		}
		input.Roles = append(input.Roles, role)
	}

	if raw := q.Get("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return input, apperr.Validation("Invalid isActive")
		}
		input.IsActive = &active
	}
	input.Search = q.Get("search")

	var err error
	if input.Page, input.Limit, err = parsePage(r); err != nil {
		return input, err
	}
	return input, nil
}

// ParseActivityQuery reads the activity trail filters.
func ParseActivityQuery(r *http.Request) (service.ActivityInput, error) {
	var input service.ActivityInput

	if userID := r.URL.Query().Get("userId"); userID != "" {
		if !model.IsValidID(userID) {
			return input, errInvalidID
		}
		input.UserID = userID
	}

	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		return input, err
	}
	input.Limit = limit
	return input, nil
}

// parsePage reads page and limit, defaulting absent ones to the first page
// of service.DefaultPageLimit items.
func parsePage(r *http.Request) (int, int, error) {
	page, err := httputil.QueryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, apperr.Validation("Page must be a positive integer")
	}
	limit, err := httputil.QueryInt(r, "limit", service.DefaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit < 1 || limit > service.MaxPageLimit {
		return 0, 0, apperr.Validation("Limit must be between 1 and 100")
	}
	return page, limit, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
