package auth

import (
	"github.com/taskflow/taskflow/internal/apperr"
	"github.com/taskflow/taskflow/internal/model"
)

var (
	errNotAuthenticated = apperr.Unauthenticated("Not authenticated")
	errPermissionDenied = apperr.Forbidden("Permission denied")
	errAccessDenied     = apperr.Forbidden("Access denied")
)

// RequireRole fails with Forbidden unless the caller holds one of allowed.
func RequireRole(caller *model.User, allowed ...model.Role) error {
	if caller == nil {
		return errNotAuthenticated
	}
	for _, role := range allowed {
		if caller.Role == role {
			return nil
		}
	}
	return errPermissionDenied
}

// CanAccessTask applies the ownership gate. Admins may act on any task;
// everyone else only on tasks whose stored owner is themselves. A nil task
// is denied for non-admins so that missing and foreign tasks look the same.
func CanAccessTask(caller *model.User, task *model.Task) error {
	if caller == nil {
		return errNotAuthenticated
	}
	if caller.IsAdmin() {
		return nil
	}
	if task != nil && task.OwnerID == caller.ID {
		return nil
	}
	return errAccessDenied
}

// GuardSelfRoleChange stops an admin from moving their own role away from admin.
func GuardSelfRoleChange(caller *model.User, targetID string, newRole *model.Role) error {
	if caller == nil || newRole == nil || caller.ID != targetID {
		return nil
	}
	if *newRole != model.RoleAdmin {
		return apperr.Validation("Cannot change own role")
	}
	return nil
}

// GuardSelfDelete stops an admin from deleting their own account.
func GuardSelfDelete(caller *model.User, targetID string) error {
	if caller != nil && caller.ID == targetID {
		return apperr.Validation("Cannot delete own account")
	}
	return nil
}

// ResolveRegistrationRole grants admin only when it was requested by an
// active admin. Every other registration gets the user role.
func ResolveRegistrationRole(caller *model.User, requested model.Role) model.Role {
	if requested == model.RoleAdmin && caller != nil && caller.IsActive && caller.IsAdmin() {
		return model.RoleAdmin
	}
	return model.RoleUser
}
